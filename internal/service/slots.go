package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/game/slots"
	"chips-casino/internal/model"
	"chips-casino/internal/pkg/events"
)

// SlotsService settles slot spins.
type SlotsService struct {
	ledger       *Ledger
	engine       *slots.Slots
	achievements *AchievementService
}

// NewSlotsService creates a new SlotsService instance.
func NewSlotsService(ledger *Ledger, engine *slots.Slots, achievements *AchievementService) *SlotsService {
	return &SlotsService{ledger: ledger, engine: engine, achievements: achievements}
}

// SpinResult is a settled spin with the balance it left.
type SpinResult struct {
	*slots.Outcome
	BetAmount int64 `json:"betAmount"`
	Balance   int64 `json:"balance"`
}

// Spin stakes bet, spins and pays out in one transaction.
func (s *SlotsService) Spin(ctx context.Context, userID uuid.UUID, bet int64) (*SpinResult, error) {
	if err := s.engine.ValidateBet(bet); err != nil {
		return nil, err
	}

	var outcome *slots.Outcome
	var user *model.User
	err := s.ledger.Do(ctx, func(ctx context.Context) error {
		if _, err := s.ledger.Stake(ctx, userID, model.GameSlots, bet, model.ReasonSlotsSpin); err != nil {
			return err
		}
		outcome = s.engine.Spin(bet)

		var err error
		user, err = s.ledger.Pay(ctx, userID, model.GameSlots, outcome.GrossWinnings, model.ReasonSlotsSpin)
		if err != nil {
			return err
		}
		return s.ledger.Record(ctx, userID, model.GameSlots, bet, outcome.Net)
	})
	if err != nil {
		return nil, wrap("failed to settle slots spin", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Int64("bet", bet).
		Str("reels", string(outcome.Reels[0])+"|"+string(outcome.Reels[1])+"|"+string(outcome.Reels[2])).
		Int64("net", outcome.Net).
		Msg("Slots spin settled")

	s.ledger.Staked(model.GameSlots, bet)
	s.ledger.Settled(ctx, events.Settlement{
		UserID:     userID,
		GameType:   model.GameSlots,
		BetAmount:  bet,
		Payout:     outcome.GrossWinnings,
		Net:        outcome.Net,
		Balance:    user.Balance,
		Multiplier: outcome.Multiplier,
	})
	s.achievements.Award(ctx, userID, Outcome{
		GameType:   model.GameSlots,
		Bet:        bet,
		Payout:     outcome.GrossWinnings,
		Net:        outcome.Net,
		Multiplier: outcome.Multiplier,
		Jackpot:    outcome.IsJackpot(),
	})

	return &SpinResult{Outcome: outcome, BetAmount: bet, Balance: user.Balance}, nil
}
