package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chips-casino/internal/model"
)

// AchievementRepository handles unlocked achievements.
type AchievementRepository struct {
	conn
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(pool *pgxpool.Pool) *AchievementRepository {
	return &AchievementRepository{conn: newConn(pool)}
}

// Unlock records an achievement once. It reports whether this call unlocked it.
func (r *AchievementRepository) Unlock(ctx context.Context, userID uuid.UUID, achievementType string, data map[string]any) (bool, error) {
	const query = `
		INSERT INTO achievements (user_id, achievement_type, achievement_data, unlocked_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, achievement_type) DO NOTHING
	`

	if data == nil {
		data = map[string]any{}
	}
	result, err := r.db(ctx).Exec(ctx, query, userID, achievementType, data)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListByUser returns the user's achievements in unlock order.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Achievement, error) {
	const query = `
		SELECT id, user_id, achievement_type, achievement_data, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at, id
	`

	rows, err := r.db(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*model.Achievement
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Data, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return achievements, nil
}
