package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"chips-casino/internal/model"
	"chips-casino/internal/repository"
)

// History page bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ErrInvalidGameType is returned for an unknown history filter.
var ErrInvalidGameType = errors.New("invalid game type")

// HistoryQuery filters a history page.
type HistoryQuery struct {
	GameType string
	Before   *time.Time
	Limit    int
}

// HistoryPage is one page of the caller's ledger.
type HistoryPage struct {
	Transactions []*model.Transaction `json:"transactions"`
	Games        []*model.GameHistory `json:"games"`
}

// HistoryService reads the per-user ledger.
type HistoryService struct {
	txs     *repository.TransactionRepository
	history *repository.HistoryRepository
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(txs *repository.TransactionRepository, history *repository.HistoryRepository) *HistoryService {
	return &HistoryService{txs: txs, history: history}
}

// categories accepted as a history filter.
var historyCategories = append(model.GameTypes(), model.DailyBonus, model.TediousTask, model.AdminGrant)

// clampLimit applies the default and the upper bound.
func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultHistoryLimit
	case n > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return n
	}
}

// List returns the most recent transactions and settled rounds.
func (s *HistoryService) List(ctx context.Context, userID uuid.UUID, q HistoryQuery) (*HistoryPage, error) {
	if q.GameType != "" && !slices.Contains(historyCategories, q.GameType) {
		return nil, ErrInvalidGameType
	}
	f := repository.ListFilter{GameType: q.GameType, Before: q.Before, Limit: clampLimit(q.Limit)}

	txs, err := s.txs.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	games, err := s.history.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Transactions: txs, Games: games}
	if page.Transactions == nil {
		page.Transactions = []*model.Transaction{}
	}
	if page.Games == nil {
		page.Games = []*model.GameHistory{}
	}
	return page, nil
}
