package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game/crash"
	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
	"chips-casino/internal/repository"
)

// CrashService runs Crash rounds. Each round is settled exactly once, by a
// cash-out or by the crash itself.
type CrashService struct {
	ledger       *Ledger
	engine       *crash.Engine
	repo         *repository.CrashRepository
	achievements *AchievementService
}

// NewCrashService creates a new CrashService instance.
func NewCrashService(ledger *Ledger, engine *crash.Engine, repo *repository.CrashRepository, achievements *AchievementService) *CrashService {
	return &CrashService{ledger: ledger, engine: engine, repo: repo, achievements: achievements}
}

// Grace is how long past a round's crash instant a cash-out made before it
// may still arrive.
func (s *CrashService) Grace() time.Duration { return s.engine.Tolerance() }

// CrashStartResult is a new round.
type CrashStartResult struct {
	RoundID              uuid.UUID `json:"roundId"`
	CrashMultiplier      float64   `json:"crashMultiplier"`
	StartedAt            time.Time `json:"startedAt"`
	CurveDurationSeconds float64   `json:"curveDurationSeconds"`
	Balance              int64     `json:"balance"`
}

// CrashSettleResult is a settled round. Balance is only set when chips moved.
type CrashSettleResult struct {
	*crash.Resolution
	Balance *int64 `json:"balance,omitempty"`
}

func toEngineRound(r *model.CrashRound) *crash.Round {
	round := &crash.Round{
		BetAmount:       r.BetAmount,
		CrashMultiplier: r.CrashMultiplier,
		StartedAt:       r.StartedAt,
		State:           crash.State(r.State),
	}
	if r.CashedOutAt != nil {
		round.CashedOutAt = *r.CashedOutAt
	}
	return round
}

// Start stakes bet and opens a round with a pre-committed crash point.
func (s *CrashService) Start(ctx context.Context, userID uuid.UUID, bet int64) (*CrashStartResult, error) {
	now := s.ledger.now().UTC()
	round, err := s.engine.Start(bet, now)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	var user *model.User
	err = s.ledger.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.ledger.Stake(ctx, userID, model.GameCrash, bet, model.ReasonCrashBet)
		if err != nil {
			return err
		}
		return s.repo.Create(ctx, &model.CrashRound{
			ID:              id,
			UserID:          userID,
			BetAmount:       bet,
			CrashMultiplier: round.CrashMultiplier,
			StartedAt:       round.StartedAt,
			State:           string(round.State),
		})
	})
	if err != nil {
		return nil, wrap("failed to start crash round", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("round_id", id.String()).
		Int64("bet", bet).
		Msg("Crash round started")

	s.ledger.Staked(model.GameCrash, bet)
	return &CrashStartResult{
		RoundID:              id,
		CrashMultiplier:      round.CrashMultiplier,
		StartedAt:            round.StartedAt,
		CurveDurationSeconds: crash.CurveDurationSeconds,
		Balance:              user.Balance,
	}, nil
}

// Round returns a round owned by userID as engine state.
func (s *CrashService) Round(ctx context.Context, userID, roundID uuid.UUID) (*crash.Round, error) {
	row, err := s.repo.GetByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotFound) {
			return nil, crash.ErrRoundNotFound
		}
		return nil, err
	}
	if row.UserID != userID {
		return nil, crash.ErrRoundNotOwned
	}
	return toEngineRound(row), nil
}

// CashOut settles a cash-out. clientElapsed is the elapsed time the client
// saw when the player clicked, or nil.
func (s *CrashService) CashOut(ctx context.Context, userID, roundID uuid.UUID, clientElapsed *float64) (*CrashSettleResult, error) {
	return s.settle(ctx, userID, roundID, func(r *crash.Round, now time.Time) (*crash.Resolution, error) {
		return s.engine.CashOut(r, now, clientElapsed)
	})
}

// Resolve finalizes a round whose curve has already reached its crash point.
func (s *CrashService) Resolve(ctx context.Context, userID, roundID uuid.UUID) (*CrashSettleResult, error) {
	return s.settle(ctx, userID, roundID, func(r *crash.Round, now time.Time) (*crash.Resolution, error) {
		return r.ResolveCrashed(now)
	})
}

func (s *CrashService) settle(
	ctx context.Context,
	userID, roundID uuid.UUID,
	resolve func(r *crash.Round, now time.Time) (*crash.Resolution, error),
) (*CrashSettleResult, error) {
	var res *crash.Resolution
	var round *crash.Round
	var user *model.User
	err := s.ledger.withLock(ctx, "crash:"+roundID.String(), func() error {
		var err error
		round, err = s.Round(ctx, userID, roundID)
		if err != nil {
			return err
		}

		res, err = resolve(round, s.ledger.now())
		if err != nil {
			return err
		}

		return s.ledger.Do(ctx, func(ctx context.Context) error {
			var cashedOutAt *float64
			if !res.Crashed {
				cashedOutAt = &res.CashoutMultiplier
			}
			if err := s.repo.Finish(ctx, roundID, string(round.State), cashedOutAt, &res.Payout); err != nil {
				return err
			}
			if !res.Crashed {
				user, err = s.ledger.Pay(ctx, userID, model.GameCrash, res.Payout, model.ReasonCrashCashout)
				if err != nil {
					return err
				}
			}
			return s.ledger.Record(ctx, userID, model.GameCrash, round.BetAmount, res.Payout-round.BetAmount)
		})
	})
	if errors.Is(err, repository.ErrAlreadyFinished) {
		return nil, crash.ErrRoundFinished
	}
	if err != nil {
		return nil, wrap("failed to settle crash round", err)
	}

	net := res.Payout - round.BetAmount
	out := &CrashSettleResult{Resolution: res}
	e := events.Settlement{
		UserID:     userID,
		GameType:   model.GameCrash,
		RoundID:    roundID.String(),
		BetAmount:  round.BetAmount,
		Payout:     res.Payout,
		Net:        net,
		Multiplier: res.CashoutMultiplier,
	}
	if user != nil {
		out.Balance = &user.Balance
		e.Balance = user.Balance
	}
	s.ledger.Settled(ctx, e)

	if !res.Crashed {
		s.achievements.Award(ctx, userID, Outcome{
			GameType:   model.GameCrash,
			Bet:        round.BetAmount,
			Payout:     res.Payout,
			Net:        net,
			Multiplier: res.CashoutMultiplier,
		})
	}
	return out, nil
}
