package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/repository"
)

// Task types.
const (
	TaskMath    = "math"
	TaskTrivia  = "trivia"
	TaskCaptcha = "captcha"
	TaskTyping  = "typing"
	TaskWaiting = "waiting"
)

// Completion thresholds checked by VerifyCompletion.
const (
	mathProblems    = 20
	triviaQuestions = 5
	captchas        = 10
	typingAccuracy  = 95.0
)

var taskTypes = []string{TaskMath, TaskTrivia, TaskCaptcha, TaskTyping, TaskWaiting}

// Errors for task operations.
var (
	ErrInvalidTaskType  = errors.New("invalid task type")
	ErrTasksUnavailable = errors.New("tasks are only available when balance is 0")
	ErrTaskNotVerified  = errors.New("task completion verification failed")
	ErrTaskOnCooldown   = errors.New("task is on cooldown")
)

// CooldownError carries the remaining cooldown of a task.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", ErrTaskOnCooldown, int64(e.Remaining/time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrTaskOnCooldown }

// TaskTypes returns the supported task types.
func TaskTypes() []string { return slices.Clone(taskTypes) }

// CompletionData is what the client reports when finishing a task.
// Pointer fields distinguish "not reported" from zero.
type CompletionData struct {
	ProblemsSolved    *int     `json:"problemsSolved,omitempty"`
	QuestionsAnswered *int     `json:"questionsAnswered,omitempty"`
	CorrectCount      *int     `json:"correctCount,omitempty"`
	CaptchasSolved    *int     `json:"captchasSolved,omitempty"`
	Completed         *bool    `json:"completed,omitempty"`
	TimeElapsed       *float64 `json:"timeElapsed,omitempty"`
	MinTime           *float64 `json:"minTime,omitempty"`
	Accuracy          *float64 `json:"accuracy,omitempty"`
	TabFocused        *bool    `json:"tabFocused,omitempty"`
}

func intIs(p *int, want int) bool { return p != nil && *p == want }
func isTrue(p *bool) bool         { return p != nil && *p }

func elapsedAtLeastMin(d CompletionData) bool {
	return d.TimeElapsed != nil && d.MinTime != nil && *d.TimeElapsed >= *d.MinTime
}

// VerifyCompletion checks the reported data against the task's rules.
func VerifyCompletion(taskType string, d CompletionData) bool {
	switch taskType {
	case TaskMath:
		return intIs(d.ProblemsSolved, mathProblems) && intIs(d.CorrectCount, mathProblems)
	case TaskTrivia:
		return intIs(d.QuestionsAnswered, triviaQuestions) && intIs(d.CorrectCount, triviaQuestions)
	case TaskCaptcha:
		return intIs(d.CaptchasSolved, captchas)
	case TaskTyping:
		return isTrue(d.Completed) && elapsedAtLeastMin(d) && d.Accuracy != nil && *d.Accuracy >= typingAccuracy
	case TaskWaiting:
		return isTrue(d.Completed) && elapsedAtLeastMin(d) && isTrue(d.TabFocused)
	default:
		return false
	}
}

// metadata flattens d for the completion log.
func (d CompletionData) metadata() map[string]any {
	m := map[string]any{}
	if d.ProblemsSolved != nil {
		m["problemsSolved"] = *d.ProblemsSolved
	}
	if d.QuestionsAnswered != nil {
		m["questionsAnswered"] = *d.QuestionsAnswered
	}
	if d.CorrectCount != nil {
		m["correctCount"] = *d.CorrectCount
	}
	if d.CaptchasSolved != nil {
		m["captchasSolved"] = *d.CaptchasSolved
	}
	if d.Completed != nil {
		m["completed"] = *d.Completed
	}
	if d.TimeElapsed != nil {
		m["timeElapsed"] = *d.TimeElapsed
	}
	if d.MinTime != nil {
		m["minTime"] = *d.MinTime
	}
	if d.Accuracy != nil {
		m["accuracy"] = *d.Accuracy
	}
	if d.TabFocused != nil {
		m["tabFocused"] = *d.TabFocused
	}
	return m
}

// TaskStatus is one task as listed to the user.
type TaskStatus struct {
	Type              string `json:"type"`
	Reward            int64  `json:"reward"`
	CooldownSeconds   int    `json:"cooldownSeconds"`
	CooldownRemaining int64  `json:"cooldownRemaining"`
	IsOnCooldown      bool   `json:"isOnCooldown"`
	CanStart          bool   `json:"canStart"`
}

// TaskList is the task hub for a user.
type TaskList struct {
	Available bool          `json:"available"`
	Message   string        `json:"message,omitempty"`
	Tasks     []*TaskStatus `json:"tasks"`
}

// TaskReward is a rewarded completion.
type TaskReward struct {
	Reward  int64 `json:"reward"`
	Balance int64 `json:"balance"`
}

// TaskService runs the balance-recovery tasks.
type TaskService struct {
	ledger       *Ledger
	repo         *repository.TaskRepository
	achievements *AchievementService
}

// NewTaskService creates a new TaskService instance.
func NewTaskService(ledger *Ledger, repo *repository.TaskRepository, achievements *AchievementService) *TaskService {
	return &TaskService{ledger: ledger, repo: repo, achievements: achievements}
}

func validTaskType(t string) error {
	if !slices.Contains(taskTypes, t) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, t)
	}
	return nil
}

// remaining returns the cooldown left for taskType at now.
func (s *TaskService) remaining(ctx context.Context, userID uuid.UUID, cfg *model.TaskConfig, now time.Time) (time.Duration, error) {
	last, err := s.repo.LastCompletion(ctx, userID, cfg.TaskType)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 0, nil
	}
	left := last.Add(time.Duration(cfg.CooldownSeconds) * time.Second).Sub(now)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// requireZeroBalance returns the user if the balance is exactly zero.
func (s *TaskService) requireZeroBalance(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.ledger.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance > 0 {
		return nil, ErrTasksUnavailable
	}
	return user, nil
}

// List returns the tasks with their cooldowns. Tasks are only offered to
// users with no chips.
func (s *TaskService) List(ctx context.Context, userID uuid.UUID) (*TaskList, error) {
	if _, err := s.requireZeroBalance(ctx, userID); err != nil {
		if errors.Is(err, ErrTasksUnavailable) {
			return &TaskList{Message: "Tasks are only available when your balance is 0", Tasks: []*TaskStatus{}}, nil
		}
		return nil, err
	}

	configs, err := s.repo.ListConfig(ctx)
	if err != nil {
		return nil, err
	}

	now := s.ledger.now()
	list := &TaskList{Available: true, Tasks: make([]*TaskStatus, 0, len(configs))}
	for _, cfg := range configs {
		left, err := s.remaining(ctx, userID, cfg, now)
		if err != nil {
			return nil, err
		}
		list.Tasks = append(list.Tasks, &TaskStatus{
			Type:              cfg.TaskType,
			Reward:            cfg.RewardAmount,
			CooldownSeconds:   cfg.CooldownSeconds,
			CooldownRemaining: int64(left / time.Second),
			IsOnCooldown:      left > 0,
			CanStart:          left <= 0,
		})
	}
	return list, nil
}

// Start checks that taskType may be attempted now.
func (s *TaskService) Start(ctx context.Context, userID uuid.UUID, taskType string) error {
	if err := validTaskType(taskType); err != nil {
		return err
	}
	if _, err := s.requireZeroBalance(ctx, userID); err != nil {
		return err
	}
	cfg, err := s.repo.GetConfig(ctx, taskType)
	if err != nil {
		return err
	}
	left, err := s.remaining(ctx, userID, cfg, s.ledger.now())
	if err != nil {
		return err
	}
	if left > 0 {
		return &CooldownError{Remaining: left}
	}
	return nil
}

// Complete verifies a finished task and pays its reward.
func (s *TaskService) Complete(ctx context.Context, userID uuid.UUID, taskType string, data CompletionData) (*TaskReward, error) {
	if err := validTaskType(taskType); err != nil {
		return nil, err
	}

	var reward *TaskReward
	err := s.ledger.withLock(ctx, "task:"+userID.String(), func() error {
		if _, err := s.requireZeroBalance(ctx, userID); err != nil {
			return err
		}
		if !VerifyCompletion(taskType, data) {
			return ErrTaskNotVerified
		}
		cfg, err := s.repo.GetConfig(ctx, taskType)
		if err != nil {
			return err
		}
		now := s.ledger.now()
		left, err := s.remaining(ctx, userID, cfg, now)
		if err != nil {
			return err
		}
		if left > 0 {
			return &CooldownError{Remaining: left}
		}

		return s.ledger.Do(ctx, func(ctx context.Context) error {
			user, err := s.ledger.Pay(ctx, userID, model.TediousTask, cfg.RewardAmount, model.ReasonTaskReward+": "+taskType)
			if err != nil {
				return err
			}
			if err := s.repo.CreateCompletion(ctx, &model.TaskCompletion{
				UserID:       userID,
				TaskType:     taskType,
				RewardAmount: cfg.RewardAmount,
				Metadata:     data.metadata(),
				CompletedAt:  now,
			}); err != nil {
				return err
			}
			reward = &TaskReward{Reward: cfg.RewardAmount, Balance: user.Balance}
			return s.ledger.Record(ctx, userID, model.TediousTask, 0, cfg.RewardAmount)
		})
	})
	if err != nil {
		return nil, wrap("failed to complete task", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("task", taskType).
		Int64("reward", reward.Reward).
		Msg("Task completed")

	s.ledger.Settled(ctx, events.Settlement{
		UserID:   userID,
		GameType: model.TediousTask,
		Payout:   reward.Reward,
		Net:      reward.Reward,
		Balance:  reward.Balance,
	})
	s.achievements.Award(ctx, userID, Outcome{GameType: model.TediousTask, Payout: reward.Reward, TaskDone: true})
	return reward, nil
}
