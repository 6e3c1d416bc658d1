package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chips-casino/internal/model"
)

const userColumns = `id, username, balance, is_admin, last_daily_bonus_at, created_at, updated_at`

// UserRepository handles ledger account persistence.
type UserRepository struct {
	conn
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{conn: newConn(pool)}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.IsAdmin,
		&user.LastDailyBonusAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate returns the account for id, creating it with startingBalance on
// first sight. Username and admin flag follow the latest session claims.
// The boolean reports whether the account was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, id uuid.UUID, username string, isAdmin bool, startingBalance int64) (*model.User, bool, error) {
	const query = `
		INSERT INTO users (id, username, balance, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    is_admin = EXCLUDED.is_admin,
		    updated_at = CASE
		        WHEN users.username IS DISTINCT FROM EXCLUDED.username
		          OR users.is_admin IS DISTINCT FROM EXCLUDED.is_admin
		        THEN NOW() ELSE users.updated_at END
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var user model.User
	var inserted bool
	err := r.db(ctx).QueryRow(ctx, query, id, username, startingBalance, isAdmin).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.IsAdmin,
		&user.LastDailyBonusAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create user: %w", err)
	}
	return &user, inserted, nil
}

// Debit subtracts amount from the balance if the balance covers it.
// Returns ErrInsufficientBalance otherwise.
func (r *UserRepository) Debit(ctx context.Context, id uuid.UUID, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING ` + userColumns

	user, err := scanUser(r.db(ctx).QueryRow(ctx, query, id, amount))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientBalance
}

// Credit adds amount to the balance.
func (r *UserRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.db(ctx).QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return user, nil
}

// Adjust applies a signed delta, refusing to take the balance below zero.
func (r *UserRepository) Adjust(ctx context.Context, id uuid.UUID, delta int64) (*model.User, error) {
	if delta < 0 {
		return r.Debit(ctx, id, -delta)
	}
	return r.Credit(ctx, id, delta)
}

// ClaimDaily credits reward and stamps the claim time if the previous claim
// is at least cooldown old. Returns ErrDailyNotReady otherwise.
func (r *UserRepository) ClaimDaily(ctx context.Context, id uuid.UUID, reward int64, cooldown time.Duration, now time.Time) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, last_daily_bonus_at = $3, updated_at = NOW()
		WHERE id = $1 AND (last_daily_bonus_at IS NULL OR last_daily_bonus_at <= $4)
		RETURNING ` + userColumns

	user, err := scanUser(r.db(ctx).QueryRow(ctx, query, id, reward, now, now.Add(-cooldown)))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim daily bonus: %w", err)
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrDailyNotReady
}
