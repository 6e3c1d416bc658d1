// Package service provides business logic implementations.
//
// Every balance-changing operation runs inside one database transaction:
// the stake, the game state transition, the payout and the audit rows commit
// together or not at all. Metrics, events and achievements follow the commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game"
	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/pkg/lock"
	"chips-casino/internal/pkg/metrics"
	"chips-casino/internal/repository"
)

// Common service errors.
var (
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	ErrBusy          = errors.New("another request for this game is in progress")
)

// lockTimeout bounds how long a request waits for the same session or round.
const lockTimeout = 5 * time.Second

// Ledger moves chips and writes the audit trail. It is shared by every
// service that changes a balance.
type Ledger struct {
	tx        trm.Manager
	users     *repository.UserRepository
	txs       *repository.TransactionRepository
	history   *repository.HistoryRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	locks     *lock.KeyedLock
	now       func() time.Time
	observers []func(ctx context.Context, e events.Settlement)
}

// NewLedger creates a Ledger. publisher and m may be nil.
func NewLedger(
	tx trm.Manager,
	users *repository.UserRepository,
	txs *repository.TransactionRepository,
	history *repository.HistoryRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
) *Ledger {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Ledger{
		tx:        tx,
		users:     users,
		txs:       txs,
		history:   history,
		publisher: publisher,
		metrics:   m,
		locks:     lock.New(),
		now:       time.Now,
	}
}

// OnSettled registers fn to run after every committed settlement.
// Register observers before serving requests.
func (l *Ledger) OnSettled(fn func(ctx context.Context, e events.Settlement)) {
	l.observers = append(l.observers, fn)
}

// Do runs fn in one transaction.
func (l *Ledger) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.tx.Do(ctx, fn)
}

// withLock serializes callers on key.
func (l *Ledger) withLock(ctx context.Context, key string, fn func() error) error {
	err := l.locks.WithLockContext(ctx, key, lockTimeout, fn)
	if errors.Is(err, lock.ErrLockTimeout) {
		return ErrBusy
	}
	return err
}

// Stake debits amount and logs it as a negative transaction.
func (l *Ledger) Stake(ctx context.Context, userID uuid.UUID, gameType string, amount int64, reason string) (*model.User, error) {
	user, err := l.users.Debit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := l.txs.Create(ctx, &model.Transaction{
		UserID:       userID,
		GameType:     gameType,
		Amount:       -amount,
		BalanceAfter: user.Balance,
		Reason:       reason,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Pay credits amount and logs it. A zero amount only reads the balance.
func (l *Ledger) Pay(ctx context.Context, userID uuid.UUID, gameType string, amount int64, reason string) (*model.User, error) {
	if amount <= 0 {
		return l.users.GetByID(ctx, userID)
	}
	user, err := l.users.Credit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := l.txs.Create(ctx, &model.Transaction{
		UserID:       userID,
		GameType:     gameType,
		Amount:       amount,
		BalanceAfter: user.Balance,
		Reason:       reason,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Record writes a history row for a settled round. net is the chip change.
func (l *Ledger) Record(ctx context.Context, userID uuid.UUID, gameType string, bet, net int64) error {
	return l.history.Create(ctx, &model.GameHistory{
		UserID:    userID,
		GameType:  gameType,
		BetAmount: bet,
		Result:    string(game.Classify(net)),
		Winnings:  net,
	})
}

// Settled reports a committed settlement to metrics and the event stream.
func (l *Ledger) Settled(ctx context.Context, e events.Settlement) {
	if e.Result == "" {
		e.Result = string(game.Classify(e.Net))
	}
	if e.SettledAt.IsZero() {
		e.SettledAt = l.now().UTC()
	}
	l.metrics.ObserveSettlement(e.GameType, e.Result, e.Payout)
	if err := l.publisher.PublishSettlement(ctx, e); err != nil {
		log.Warn().Err(err).
			Str("user_id", e.UserID.String()).
			Str("game", e.GameType).
			Msg("Failed to publish settlement")
	}
	for _, fn := range l.observers {
		fn(ctx, e)
	}
}

// Staked reports an accepted stake to metrics.
func (l *Ledger) Staked(gameType string, amount int64) {
	l.metrics.ObserveBet(gameType, amount)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
