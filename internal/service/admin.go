package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/repository"
)

// ErrInvalidTaskConfig is returned for a negative reward or cooldown.
var ErrInvalidTaskConfig = errors.New("reward and cooldown must not be negative")

// AdminService handles operator actions.
type AdminService struct {
	ledger *Ledger
	tasks  *repository.TaskRepository
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(ledger *Ledger, tasks *repository.TaskRepository) *AdminService {
	return &AdminService{ledger: ledger, tasks: tasks}
}

// AddChipsResult is the user's balance after a grant.
type AddChipsResult struct {
	UserID  uuid.UUID `json:"userId"`
	Amount  int64     `json:"amount"`
	Balance int64     `json:"balance"`
}

// AddChips grants (or, with a negative amount, removes) chips. The balance
// never goes below zero.
func (s *AdminService) AddChips(ctx context.Context, adminID, userID uuid.UUID, amount int64, reason string) (*AddChipsResult, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = model.ReasonAdminAddChips
	}

	var user *model.User
	err := s.ledger.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.ledger.users.Adjust(ctx, userID, amount)
		if err != nil {
			return err
		}
		return s.ledger.txs.Create(ctx, &model.Transaction{
			UserID:       userID,
			GameType:     model.AdminGrant,
			Amount:       amount,
			BalanceAfter: user.Balance,
			Reason:       reason,
		})
	})
	if err != nil {
		return nil, wrap("failed to add chips", err)
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Int64("balance", user.Balance).
		Str("reason", reason).
		Msg("Admin chip grant")

	s.ledger.Settled(ctx, events.Settlement{
		UserID:   userID,
		GameType: model.AdminGrant,
		Net:      amount,
		Payout:   max(amount, 0),
		Balance:  user.Balance,
	})
	return &AddChipsResult{UserID: userID, Amount: amount, Balance: user.Balance}, nil
}

// TaskConfig lists every task configuration.
func (s *AdminService) TaskConfig(ctx context.Context) ([]*model.TaskConfig, error) {
	return s.tasks.ListConfig(ctx)
}

// UpdateTaskConfig changes a task's reward and cooldown.
func (s *AdminService) UpdateTaskConfig(ctx context.Context, adminID uuid.UUID, taskType string, reward int64, cooldownSeconds int) (*model.TaskConfig, error) {
	if err := validTaskType(taskType); err != nil {
		return nil, err
	}
	if reward < 0 || cooldownSeconds < 0 {
		return nil, ErrInvalidTaskConfig
	}
	cfg, err := s.tasks.UpdateConfig(ctx, taskType, reward, cooldownSeconds, adminID)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("admin_id", adminID.String()).
		Str("task", taskType).
		Int64("reward", reward).
		Int("cooldown_seconds", cooldownSeconds).
		Msg("Task config updated")
	return cfg, nil
}
