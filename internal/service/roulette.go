package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game/roulette"
	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
)

// RouletteService settles roulette spins.
type RouletteService struct {
	ledger       *Ledger
	engine       *roulette.Roulette
	achievements *AchievementService
}

// NewRouletteService creates a new RouletteService instance.
func NewRouletteService(ledger *Ledger, engine *roulette.Roulette, achievements *AchievementService) *RouletteService {
	return &RouletteService{ledger: ledger, engine: engine, achievements: achievements}
}

// RouletteResult is a settled spin with the balance it left.
type RouletteResult struct {
	*roulette.Settlement
	Balance int64 `json:"balance"`
}

// Spin validates the batch, stakes its total, spins once and pays every
// winning bet in one transaction.
func (s *RouletteService) Spin(ctx context.Context, userID uuid.UUID, bets []roulette.Bet) (*RouletteResult, error) {
	total, err := s.engine.ValidateBets(bets)
	if err != nil {
		return nil, err
	}

	var settlement *roulette.Settlement
	var user *model.User
	err = s.ledger.Do(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.Stake(ctx, userID, model.GameRoulette, total, model.ReasonRouletteSpin); err != nil {
			return err
		}
		settlement = s.engine.Spin(bets)

		var err error
		user, err = s.ledger.Pay(ctx, userID, model.GameRoulette, settlement.TotalPayout, model.ReasonRouletteSpin)
		if err != nil {
			return err
		}
		return s.ledger.Record(ctx, userID, model.GameRoulette, settlement.TotalStake, settlement.Net)
	})
	if err != nil {
		return nil, wrap("failed to settle roulette spin", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Int("bets", len(bets)).
		Int("winning_number", settlement.WinningNumber).
		Int64("net", settlement.Net).
		Msg("Roulette spin settled")

	s.ledger.Staked(model.GameRoulette, total)
	s.ledger.Settled(ctx, events.Settlement{
		UserID:    userID,
		GameType:  model.GameRoulette,
		BetAmount: settlement.TotalStake,
		Payout:    settlement.TotalPayout,
		Net:       settlement.Net,
		Balance:   user.Balance,
	})
	s.achievements.Award(ctx, userID, Outcome{
		GameType:    model.GameRoulette,
		Bet:         settlement.TotalStake,
		Payout:      settlement.TotalPayout,
		Net:         settlement.Net,
		StraightHit: settlement.HasStraightWin(),
	})

	return &RouletteResult{Settlement: settlement, Balance: user.Balance}, nil
}
