package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/pkg/rng"
	"chips-casino/internal/repository"
)

// Challenge actions accepted by Act.
const (
	ChallengeJoin    = "join"
	ChallengeRestart = "restart"
	// ChallengeUpdateBalance is rejected: entries follow settled rounds.
	ChallengeUpdateBalance = "update_balance"
)

// Errors for daily challenge operations.
var (
	ErrChallengeEnded         = errors.New("challenge has ended")
	ErrInvalidChallengeAction = errors.New("invalid action")
	ErrChallengeBalanceFixed  = errors.New("challenge balance follows settled rounds")
)

// ChallengeConfig holds the parameters of newly created challenges.
type ChallengeConfig struct {
	StartingBalance int64
	PrizePool       int64
}

// DefaultChallengeConfig returns the stock challenge parameters.
func DefaultChallengeConfig() ChallengeConfig {
	return ChallengeConfig{StartingBalance: 10000, PrizePool: 50000}
}

// ChallengeService runs the daily challenge. Entries start at the
// challenge's starting balance and follow the net of the user's settled
// rounds of the challenge game until the challenge ends or they reach zero.
type ChallengeService struct {
	ledger *Ledger
	repo   *repository.ChallengeRepository
	source rng.Source
	cfg    ChallengeConfig
}

// NewChallengeService creates a ChallengeService and subscribes it to the
// ledger's settlements. A nil source picks game types with rng.Math.
func NewChallengeService(ledger *Ledger, repo *repository.ChallengeRepository, source rng.Source, cfg ChallengeConfig) *ChallengeService {
	if source == nil {
		source = rng.Math()
	}
	if cfg.StartingBalance <= 0 || cfg.PrizePool <= 0 {
		cfg = DefaultChallengeConfig()
	}
	s := &ChallengeService{ledger: ledger, repo: repo, source: source, cfg: cfg}
	ledger.OnSettled(s.Track)
	return s
}

// ChallengeOverview is the current challenge, optional history and the
// caller's entry in the current challenge.
type ChallengeOverview struct {
	Current   *model.DailyChallenge   `json:"currentChallenge"`
	History   []*model.DailyChallenge `json:"history"`
	UserEntry *model.ChallengeEntry   `json:"userEntry"`
}

// ChallengeResult is the outcome of Act.
type ChallengeResult struct {
	Success         bool                  `json:"success"`
	Entry           *model.ChallengeEntry `json:"entry"`
	StartingBalance int64                 `json:"startingBalance"`
	Message         string                `json:"message,omitempty"`
}

// challengeDay is the UTC calendar day containing t.
func challengeDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Current returns today's challenge, creating it on first access.
// historyLimit > 0 also returns that many earlier challenges.
func (s *ChallengeService) Current(ctx context.Context, userID uuid.UUID, historyLimit int) (*ChallengeOverview, error) {
	day := challengeDay(s.ledger.now())
	games := model.GameTypes()

	current, err := s.repo.Ensure(ctx, &model.DailyChallenge{
		Date:            day,
		GameType:        games[s.source.IntN(len(games))],
		StartingBalance: s.cfg.StartingBalance,
		PrizePool:       s.cfg.PrizePool,
		EndTime:         day.Add(24 * time.Hour),
	})
	if err != nil {
		return nil, wrap("ensure daily challenge", err)
	}

	out := &ChallengeOverview{Current: current, History: []*model.DailyChallenge{}}

	entry, err := s.repo.GetEntry(ctx, current.ID, userID)
	switch {
	case err == nil:
		out.UserEntry = entry
	case !errors.Is(err, repository.ErrEntryNotFound):
		return nil, wrap("get challenge entry", err)
	}

	if historyLimit > 0 {
		history, err := s.repo.ListBefore(ctx, day, clampLimit(historyLimit))
		if err != nil {
			return nil, wrap("list challenges", err)
		}
		if history != nil {
			out.History = history
		}
	}
	return out, nil
}

// Act joins or restarts the caller's entry in a running challenge.
// Joining twice returns the existing entry.
func (s *ChallengeService) Act(ctx context.Context, userID, challengeID uuid.UUID, action string) (*ChallengeResult, error) {
	switch action {
	case ChallengeJoin, ChallengeRestart:
	case ChallengeUpdateBalance:
		return nil, ErrChallengeBalanceFixed
	default:
		return nil, ErrInvalidChallengeAction
	}

	challenge, err := s.repo.GetByID(ctx, challengeID)
	if err != nil {
		return nil, wrap("get challenge", err)
	}
	now := s.ledger.now()
	if !now.Before(challenge.EndTime) || !challenge.IsActive {
		return nil, ErrChallengeEnded
	}

	res := &ChallengeResult{Success: true, StartingBalance: challenge.StartingBalance}
	switch action {
	case ChallengeJoin:
		entry, created, err := s.repo.CreateEntry(ctx, challengeID, userID, challenge.StartingBalance, now)
		if err != nil {
			return nil, wrap("join challenge", err)
		}
		res.Entry = entry
		if !created {
			res.Message = "Already joined this challenge"
		}
	case ChallengeRestart:
		entry, err := s.repo.RestartEntry(ctx, challengeID, userID, challenge.StartingBalance, now)
		if err != nil {
			return nil, wrap("restart challenge", err)
		}
		res.Entry = entry
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("challenge_id", challengeID.String()).
		Str("action", action).
		Int64("balance", res.Entry.FinalBalance).
		Msg("Challenge entry updated")
	return res, nil
}

// Track applies a committed settlement to the user's open entry in the
// challenge of the settlement's day.
func (s *ChallengeService) Track(ctx context.Context, e events.Settlement) {
	if e.Net == 0 || !slices.Contains(model.GameTypes(), e.GameType) {
		return
	}
	entry, err := s.repo.ApplyNet(ctx, e.UserID, e.GameType, challengeDay(e.SettledAt), e.Net, e.SettledAt)
	if err != nil {
		if !errors.Is(err, repository.ErrEntryNotFound) {
			log.Warn().Err(err).
				Str("user_id", e.UserID.String()).
				Str("game", e.GameType).
				Msg("Failed to update challenge entry")
		}
		return
	}
	if entry.CompletedAt != nil {
		log.Info().
			Str("user_id", e.UserID.String()).
			Str("challenge_id", entry.ChallengeID.String()).
			Msg("Challenge run busted")
	}
}
