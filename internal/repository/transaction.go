package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chips-casino/internal/model"
)

// ListFilter narrows a per-user listing. Zero values mean no filter.
type ListFilter struct {
	GameType string
	Before   *time.Time
	Limit    int
}

func (f ListFilter) apply(b sq.SelectBuilder, userID uuid.UUID, timeColumn string) sq.SelectBuilder {
	b = b.Where(sq.Eq{"user_id": userID})
	if f.GameType != "" {
		b = b.Where(sq.Eq{"game_type": f.GameType})
	}
	if f.Before != nil {
		b = b.Where(sq.Lt{timeColumn: *f.Before})
	}
	b = b.OrderBy(timeColumn+" DESC", "id DESC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return b.PlaceholderFormat(sq.Dollar)
}

// TransactionRepository handles the balance change log.
type TransactionRepository struct {
	conn
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{conn: newConn(pool)}
}

// Create inserts tx and fills in its id and creation time.
func (r *TransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	const query = `
		INSERT INTO transactions (user_id, game_type, amount, balance_after, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := r.db(ctx).QueryRow(ctx, query, tx.UserID, tx.GameType, tx.Amount, tx.BalanceAfter, tx.Reason).
		Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListByUser returns the user's transactions, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*model.Transaction, error) {
	sqlStr, args, err := f.apply(
		sq.Select("id", "user_id", "game_type", "amount", "balance_after", "reason", "created_at").From("transactions"),
		userID, "created_at",
	).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transactions query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.GameType,
			&tx.Amount,
			&tx.BalanceAfter,
			&tx.Reason,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// HistoryRepository handles settled round records.
type HistoryRepository struct {
	conn
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{conn: newConn(pool)}
}

// Create inserts h and fills in its id and creation time.
func (r *HistoryRepository) Create(ctx context.Context, h *model.GameHistory) error {
	const query = `
		INSERT INTO game_history (user_id, game_type, bet_amount, result, winnings, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	err := r.db(ctx).QueryRow(ctx, query, h.UserID, h.GameType, h.BetAmount, h.Result, h.Winnings).
		Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game history: %w", err)
	}
	return nil
}

// ListByUser returns the user's settled rounds, newest first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*model.GameHistory, error) {
	sqlStr, args, err := f.apply(
		sq.Select("id", "user_id", "game_type", "bet_amount", "result", "winnings", "created_at").From("game_history"),
		userID, "created_at",
	).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build history query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get game history: %w", err)
	}
	defer rows.Close()

	var history []*model.GameHistory
	for rows.Next() {
		var h model.GameHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.GameType, &h.BetAmount, &h.Result, &h.Winnings, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game history: %w", err)
		}
		history = append(history, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game history: %w", err)
	}
	return history, nil
}

// CountWins returns how many rounds the user has won.
func (r *HistoryRepository) CountWins(ctx context.Context, userID uuid.UUID) (int64, error) {
	const query = `SELECT COUNT(*) FROM game_history WHERE user_id = $1 AND result = 'win'`

	var n int64
	if err := r.db(ctx).QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count wins: %w", err)
	}
	return n, nil
}
