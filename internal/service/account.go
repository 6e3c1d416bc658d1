package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/pkg/session"
	"chips-casino/internal/repository"
)

// AccountService handles ledger accounts and the daily bonus.
type AccountService struct {
	ledger          *Ledger
	startingBalance int64
	dailyReward     int64
	cooldown        time.Duration
	isAdmin         func(userID string) bool
}

// AccountConfig holds account settings.
type AccountConfig struct {
	StartingBalance int64
	DailyReward     int64
	DailyCooldown   time.Duration
	// IsAdmin grants admin rights beyond the session claim. May be nil.
	IsAdmin func(userID string) bool
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(ledger *Ledger, cfg AccountConfig) *AccountService {
	isAdmin := cfg.IsAdmin
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &AccountService{
		ledger:          ledger,
		startingBalance: cfg.StartingBalance,
		dailyReward:     cfg.DailyReward,
		cooldown:        cfg.DailyCooldown,
		isAdmin:         isAdmin,
	}
}

// EnsureUser returns the caller's account, creating it on first sight.
// Username and admin flag follow the session.
func (s *AccountService) EnsureUser(ctx context.Context, id *session.Identity) (*model.User, error) {
	admin := id.Admin || s.isAdmin(id.UserID.String())
	user, created, err := s.ledger.users.GetOrCreate(ctx, id.UserID, id.Username, admin, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().
			Str("user_id", user.ID.String()).
			Str("username", user.Username).
			Int64("balance", user.Balance).
			Msg("Ledger account created")
	}
	return user, nil
}

// GetUser retrieves a user by id.
func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.ledger.users.GetByID(ctx, userID)
}

// DailyStatus describes daily bonus eligibility.
type DailyStatus struct {
	CanClaim         bool       `json:"canClaim"`
	SecondsRemaining int64      `json:"secondsRemaining"`
	Amount           int64      `json:"amount"`
	LastClaimedAt    *time.Time `json:"lastClaimedAt,omitempty"`
}

// DailyResult is the outcome of a claim attempt. A refused claim is not an
// error.
type DailyResult struct {
	Claimed          bool       `json:"claimed"`
	Amount           int64      `json:"amount,omitempty"`
	Balance          int64      `json:"balance,omitempty"`
	ClaimedAt        *time.Time `json:"claimedAt,omitempty"`
	SecondsRemaining int64      `json:"secondsRemaining,omitempty"`
}

// dailyEligibility returns whether a claim is allowed at now and how long
// remains otherwise.
func dailyEligibility(last *time.Time, cooldown time.Duration, now time.Time) (bool, time.Duration) {
	if last == nil {
		return true, 0
	}
	next := last.Add(cooldown)
	if !now.Before(next) {
		return true, 0
	}
	return false, next.Sub(now)
}

// DailyStatus reports whether the user can claim now.
func (s *AccountService) DailyStatus(ctx context.Context, userID uuid.UUID) (*DailyStatus, error) {
	user, err := s.ledger.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	ok, remaining := dailyEligibility(user.LastDailyBonusAt, s.cooldown, s.ledger.now())
	return &DailyStatus{
		CanClaim:         ok,
		SecondsRemaining: int64(remaining / time.Second),
		Amount:           s.dailyReward,
		LastClaimedAt:    user.LastDailyBonusAt,
	}, nil
}

// ClaimDaily grants the daily bonus at most once per cooldown.
func (s *AccountService) ClaimDaily(ctx context.Context, userID uuid.UUID) (*DailyResult, error) {
	now := s.ledger.now().UTC()

	var user *model.User
	err := s.ledger.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.ledger.users.ClaimDaily(ctx, userID, s.dailyReward, s.cooldown, now)
		if err != nil {
			return err
		}
		if err := s.ledger.txs.Create(ctx, &model.Transaction{
			UserID:       userID,
			GameType:     model.DailyBonus,
			Amount:       s.dailyReward,
			BalanceAfter: user.Balance,
			Reason:       model.ReasonDailyBonus,
		}); err != nil {
			return err
		}
		return s.ledger.Record(ctx, userID, model.DailyBonus, 0, s.dailyReward)
	})
	if errors.Is(err, repository.ErrDailyNotReady) {
		status, err := s.DailyStatus(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &DailyResult{SecondsRemaining: status.SecondsRemaining}, nil
	}
	if err != nil {
		return nil, wrap("failed to claim daily bonus", err)
	}

	s.ledger.Settled(ctx, events.Settlement{
		UserID:   userID,
		GameType: model.DailyBonus,
		Payout:   s.dailyReward,
		Net:      s.dailyReward,
		Balance:  user.Balance,
	})

	return &DailyResult{
		Claimed:   true,
		Amount:    s.dailyReward,
		Balance:   user.Balance,
		ClaimedAt: user.LastDailyBonusAt,
	}, nil
}
