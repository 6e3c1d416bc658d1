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

// TaskRepository handles task configuration and completions.
type TaskRepository struct {
	conn
}

// NewTaskRepository creates a new TaskRepository instance.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{conn: newConn(pool)}
}

// ListConfig returns every task configuration ordered by type.
func (r *TaskRepository) ListConfig(ctx context.Context) ([]*model.TaskConfig, error) {
	const query = `
		SELECT task_type, reward_amount, cooldown_seconds, updated_at, updated_by
		FROM task_config
		ORDER BY task_type
	`

	rows, err := r.db(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get task config: %w", err)
	}
	defer rows.Close()

	var configs []*model.TaskConfig
	for rows.Next() {
		var c model.TaskConfig
		if err := rows.Scan(&c.TaskType, &c.RewardAmount, &c.CooldownSeconds, &c.UpdatedAt, &c.UpdatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan task config: %w", err)
		}
		configs = append(configs, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task config: %w", err)
	}
	return configs, nil
}

// GetConfig returns the configuration of one task type.
func (r *TaskRepository) GetConfig(ctx context.Context, taskType string) (*model.TaskConfig, error) {
	const query = `
		SELECT task_type, reward_amount, cooldown_seconds, updated_at, updated_by
		FROM task_config
		WHERE task_type = $1
	`

	var c model.TaskConfig
	err := r.db(ctx).QueryRow(ctx, query, taskType).
		Scan(&c.TaskType, &c.RewardAmount, &c.CooldownSeconds, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskTypeNotFound
		}
		return nil, fmt.Errorf("failed to get task config: %w", err)
	}
	return &c, nil
}

// UpdateConfig changes the reward and cooldown of an existing task type.
func (r *TaskRepository) UpdateConfig(ctx context.Context, taskType string, reward int64, cooldownSeconds int, updatedBy uuid.UUID) (*model.TaskConfig, error) {
	const query = `
		UPDATE task_config
		SET reward_amount = $2, cooldown_seconds = $3, updated_by = $4, updated_at = NOW()
		WHERE task_type = $1
		RETURNING task_type, reward_amount, cooldown_seconds, updated_at, updated_by
	`

	var c model.TaskConfig
	err := r.db(ctx).QueryRow(ctx, query, taskType, reward, cooldownSeconds, updatedBy).
		Scan(&c.TaskType, &c.RewardAmount, &c.CooldownSeconds, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskTypeNotFound
		}
		return nil, fmt.Errorf("failed to update task config: %w", err)
	}
	return &c, nil
}

// LastCompletion returns when the user last completed taskType, or nil.
func (r *TaskRepository) LastCompletion(ctx context.Context, userID uuid.UUID, taskType string) (*time.Time, error) {
	const query = `
		SELECT MAX(completed_at) FROM task_completions
		WHERE user_id = $1 AND task_type = $2
	`

	var last *time.Time
	if err := r.db(ctx).QueryRow(ctx, query, userID, taskType).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last task completion: %w", err)
	}
	return last, nil
}

// CreateCompletion records a rewarded task. A zero CompletedAt is stamped
// with the current time.
func (r *TaskRepository) CreateCompletion(ctx context.Context, c *model.TaskCompletion) error {
	const query = `
		INSERT INTO task_completions (user_id, task_type, reward_amount, metadata, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, completed_at
	`

	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now()
	}

	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	err := r.db(ctx).QueryRow(ctx, query, c.UserID, c.TaskType, c.RewardAmount, metadata, c.CompletedAt).
		Scan(&c.ID, &c.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create task completion: %w", err)
	}
	return nil
}
