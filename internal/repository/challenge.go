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

// ChallengeRepository handles daily challenges and their entries.
type ChallengeRepository struct {
	conn
}

// NewChallengeRepository creates a new ChallengeRepository instance.
func NewChallengeRepository(pool *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{conn: newConn(pool)}
}

const challengeColumns = `
	c.id, c.date, c.game_type, c.starting_balance, c.prize_pool, c.end_time, c.is_active, c.created_at,
	(SELECT COUNT(*) FROM challenge_entries e WHERE e.challenge_id = c.id) AS entry_count
`

const entryColumns = `id, challenge_id, user_id, final_balance, entries_count, joined_at, updated_at, completed_at`

func scanChallenge(row pgx.Row) (*model.DailyChallenge, error) {
	var c model.DailyChallenge
	err := row.Scan(&c.ID, &c.Date, &c.GameType, &c.StartingBalance, &c.PrizePool,
		&c.EndTime, &c.IsActive, &c.CreatedAt, &c.EntryCount)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanEntry(row pgx.Row) (*model.ChallengeEntry, error) {
	var e model.ChallengeEntry
	err := row.Scan(&e.ID, &e.ChallengeID, &e.UserID, &e.FinalBalance, &e.EntriesCount,
		&e.JoinedAt, &e.UpdatedAt, &e.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Ensure creates the challenge for c.Date unless one exists, and returns
// whichever challenge holds that date.
func (r *ChallengeRepository) Ensure(ctx context.Context, c *model.DailyChallenge) (*model.DailyChallenge, error) {
	const query = `
		INSERT INTO daily_challenges (id, date, game_type, starting_balance, prize_pool, end_time, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (date) DO NOTHING
	`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.db(ctx).Exec(ctx, query, c.ID, c.Date, c.GameType, c.StartingBalance, c.PrizePool, c.EndTime)
	if err != nil {
		return nil, fmt.Errorf("failed to create daily challenge: %w", err)
	}
	return r.GetByDate(ctx, c.Date)
}

// GetByDate returns the challenge of the given day.
func (r *ChallengeRepository) GetByDate(ctx context.Context, date time.Time) (*model.DailyChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM daily_challenges c WHERE c.date = $1`

	c, err := scanChallenge(r.db(ctx).QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get daily challenge: %w", err)
	}
	return c, nil
}

// GetByID returns a challenge by id.
func (r *ChallengeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DailyChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM daily_challenges c WHERE c.id = $1`

	c, err := scanChallenge(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get daily challenge: %w", err)
	}
	return c, nil
}

// ListBefore returns up to limit challenges dated before date, newest first.
func (r *ChallengeRepository) ListBefore(ctx context.Context, date time.Time, limit int) ([]*model.DailyChallenge, error) {
	query := `SELECT ` + challengeColumns + `
		FROM daily_challenges c
		WHERE c.date < $1
		ORDER BY c.date DESC
		LIMIT $2`

	rows, err := r.db(ctx).Query(ctx, query, date, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*model.DailyChallenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily challenges: %w", err)
	}
	return challenges, nil
}

// GetEntry returns the user's entry in a challenge.
func (r *ChallengeRepository) GetEntry(ctx context.Context, challengeID, userID uuid.UUID) (*model.ChallengeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM challenge_entries WHERE challenge_id = $1 AND user_id = $2`

	e, err := scanEntry(r.db(ctx).QueryRow(ctx, query, challengeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get challenge entry: %w", err)
	}
	return e, nil
}

// CreateEntry joins the user to a challenge at balance. An existing entry is
// returned unchanged with created set to false.
func (r *ChallengeRepository) CreateEntry(ctx context.Context, challengeID, userID uuid.UUID, balance int64, at time.Time) (entry *model.ChallengeEntry, created bool, err error) {
	query := `
		INSERT INTO challenge_entries (challenge_id, user_id, final_balance, entries_count, joined_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $4)
		ON CONFLICT (challenge_id, user_id) DO NOTHING
		RETURNING ` + entryColumns

	entry, err = scanEntry(r.db(ctx).QueryRow(ctx, query, challengeID, userID, balance, at))
	if err == nil {
		return entry, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create challenge entry: %w", err)
	}
	entry, err = r.GetEntry(ctx, challengeID, userID)
	return entry, false, err
}

// RestartEntry resets the entry to balance and counts another attempt.
func (r *ChallengeRepository) RestartEntry(ctx context.Context, challengeID, userID uuid.UUID, balance int64, at time.Time) (*model.ChallengeEntry, error) {
	query := `
		UPDATE challenge_entries
		SET final_balance = $3, entries_count = entries_count + 1, completed_at = NULL, updated_at = $4
		WHERE challenge_id = $1 AND user_id = $2
		RETURNING ` + entryColumns

	e, err := scanEntry(r.db(ctx).QueryRow(ctx, query, challengeID, userID, balance, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to restart challenge entry: %w", err)
	}
	return e, nil
}

// ApplyNet moves the user's open entry in the challenge of date by net chips
// when gameType is that challenge's game and the challenge has not ended at
// at. The balance floors at zero, which stamps completed_at. Returns
// ErrEntryNotFound when no entry qualifies.
func (r *ChallengeRepository) ApplyNet(ctx context.Context, userID uuid.UUID, gameType string, date time.Time, net int64, at time.Time) (*model.ChallengeEntry, error) {
	const query = `
		UPDATE challenge_entries e
		SET final_balance = GREATEST(e.final_balance + $4, 0),
		    completed_at = CASE WHEN e.final_balance + $4 <= 0 THEN $5::timestamptz END,
		    updated_at = $5
		FROM daily_challenges c
		WHERE e.challenge_id = c.id
		  AND e.user_id = $1
		  AND c.game_type = $2
		  AND c.date = $3
		  AND c.is_active
		  AND c.end_time > $5
		  AND e.completed_at IS NULL
		RETURNING e.id, e.challenge_id, e.user_id, e.final_balance, e.entries_count,
		          e.joined_at, e.updated_at, e.completed_at
	`

	e, err := scanEntry(r.db(ctx).QueryRow(ctx, query, userID, gameType, date, net, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to apply challenge result: %w", err)
	}
	return e, nil
}
