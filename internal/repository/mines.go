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

const minesColumns = `id, user_id, bet_amount, grid_size, mine_count, mines_layout, revealed_cells,
	safe_revealed, state, is_active, payout, created_at, finished_at`

// MinesRepository persists Mines sessions. State transitions are conditional
// updates so a session is settled at most once.
type MinesRepository struct {
	conn
}

// NewMinesRepository creates a new MinesRepository instance.
func NewMinesRepository(pool *pgxpool.Pool) *MinesRepository {
	return &MinesRepository{conn: newConn(pool)}
}

// Create inserts a new active session and fills in its creation time.
func (r *MinesRepository) Create(ctx context.Context, s *model.MinesSession) error {
	const query = `
		INSERT INTO mines_sessions (id, user_id, bet_amount, grid_size, mine_count, mines_layout,
			revealed_cells, safe_revealed, state, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, TRUE, NOW())
		RETURNING created_at
	`

	if s.RevealedCells == nil {
		s.RevealedCells = []int{}
	}
	err := r.db(ctx).QueryRow(ctx, query,
		s.ID, s.UserID, s.BetAmount, s.GridSize, s.MineCount, s.MinesLayout, s.RevealedCells, s.State,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mines session: %w", err)
	}
	s.IsActive = true
	return nil
}

// GetByID retrieves a session. Returns ErrSessionNotFound if absent.
func (r *MinesRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.MinesSession, error) {
	const query = `SELECT ` + minesColumns + ` FROM mines_sessions WHERE id = $1`

	var s model.MinesSession
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.BetAmount,
		&s.GridSize,
		&s.MineCount,
		&s.MinesLayout,
		&s.RevealedCells,
		&s.SafeRevealed,
		&s.State,
		&s.IsActive,
		&s.Payout,
		&s.CreatedAt,
		&s.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get mines session: %w", err)
	}
	return &s, nil
}

// RecordReveal stores a safe reveal. The update only applies while the
// session is active and still at expectedSafe reveals; otherwise
// ErrConcurrentUpdate is returned.
func (r *MinesRepository) RecordReveal(ctx context.Context, id uuid.UUID, expectedSafe int, revealed []int, safeRevealed int) error {
	const query = `
		UPDATE mines_sessions
		SET revealed_cells = $3, safe_revealed = $4
		WHERE id = $1 AND is_active AND safe_revealed = $2
	`

	result, err := r.db(ctx).Exec(ctx, query, id, expectedSafe, revealed, safeRevealed)
	if err != nil {
		return fmt.Errorf("failed to record reveal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// Finish moves an active session still at expectedSafe reveals to its final
// state. Returns ErrAlreadyFinished if the session was no longer active and
// ErrConcurrentUpdate if another reveal landed first.
func (r *MinesRepository) Finish(ctx context.Context, id uuid.UUID, expectedSafe int, state string, revealed []int, safeRevealed int, payout *int64) error {
	const query = `
		UPDATE mines_sessions
		SET is_active = FALSE, state = $3, revealed_cells = $4, safe_revealed = $5,
		    payout = $6, finished_at = NOW()
		WHERE id = $1 AND is_active AND safe_revealed = $2
	`

	result, err := r.db(ctx).Exec(ctx, query, id, expectedSafe, state, revealed, safeRevealed, payout)
	if err != nil {
		return fmt.Errorf("failed to finish mines session: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var active bool
	err = r.db(ctx).QueryRow(ctx, `SELECT is_active FROM mines_sessions WHERE id = $1`, id).Scan(&active)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrSessionNotFound
	case err != nil:
		return fmt.Errorf("failed to check mines session: %w", err)
	case active:
		return ErrConcurrentUpdate
	default:
		return ErrAlreadyFinished
	}
}
