package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chips-casino/internal/model"
)

// CrashRepository persists Crash rounds.
type CrashRepository struct {
	conn
}

// NewCrashRepository creates a new CrashRepository instance.
func NewCrashRepository(pool *pgxpool.Pool) *CrashRepository {
	return &CrashRepository{conn: newConn(pool)}
}

// Create inserts a new running round.
func (r *CrashRepository) Create(ctx context.Context, round *model.CrashRound) error {
	const query = `
		INSERT INTO crash_rounds (id, user_id, bet_amount, crash_multiplier, started_at, state, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`

	_, err := r.db(ctx).Exec(ctx, query,
		round.ID, round.UserID, round.BetAmount, round.CrashMultiplier, round.StartedAt, round.State,
	)
	if err != nil {
		return fmt.Errorf("failed to create crash round: %w", err)
	}
	round.IsActive = true
	return nil
}

// GetByID retrieves a round. Returns ErrRoundNotFound if absent.
func (r *CrashRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CrashRound, error) {
	const query = `
		SELECT id, user_id, bet_amount, crash_multiplier, started_at, state, is_active,
		       cashed_out_at, payout, finished_at
		FROM crash_rounds
		WHERE id = $1
	`

	var round model.CrashRound
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&round.ID,
		&round.UserID,
		&round.BetAmount,
		&round.CrashMultiplier,
		&round.StartedAt,
		&round.State,
		&round.IsActive,
		&round.CashedOutAt,
		&round.Payout,
		&round.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to get crash round: %w", err)
	}
	return &round, nil
}

// Finish moves a running round to its final state.
// Returns ErrAlreadyFinished if the round was no longer active.
func (r *CrashRepository) Finish(ctx context.Context, id uuid.UUID, state string, cashedOutAt *float64, payout *int64) error {
	const query = `
		UPDATE crash_rounds
		SET is_active = FALSE, state = $2, cashed_out_at = $3, payout = $4, finished_at = NOW()
		WHERE id = $1 AND is_active
	`

	result, err := r.db(ctx).Exec(ctx, query, id, state, cashedOutAt, payout)
	if err != nil {
		return fmt.Errorf("failed to finish crash round: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyFinished
	}
	return nil
}
