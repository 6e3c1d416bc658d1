package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chips-casino/internal/model"
	"chips-casino/internal/repository"
)

// Achievement types.
const (
	AchFirstWin     = "first_win"
	AchHighRoller   = "high_roller"
	AchBigWin       = "big_win"
	AchJackpot      = "jackpot"
	AchLuckyNumber  = "lucky_number"
	AchMinesweeper  = "minesweeper"
	AchSkyHigh      = "sky_high"
	AchBackFromZero = "back_from_zero"
)

// Thresholds for the stake- and payout-based achievements.
const (
	HighRollerBet int64 = 100_000
	BigWinFactor  int64 = 10
)

const (
	MinesweeperReveals = 10
	SkyHighMultiplier  = 10.0
)

// Outcome is what the achievement rules look at after a settlement.
type Outcome struct {
	GameType     string
	Bet          int64
	Payout       int64
	Net          int64
	Multiplier   float64
	Jackpot      bool
	StraightHit  bool
	SafeRevealed int
	TaskDone     bool
}

// Unlocked returns the achievement types an outcome qualifies for, in a
// fixed order.
func Unlocked(o Outcome) []string {
	var types []string
	if o.Net > 0 && o.Bet > 0 {
		types = append(types, AchFirstWin)
	}
	if o.Bet >= HighRollerBet {
		types = append(types, AchHighRoller)
	}
	if o.Bet > 0 && o.Payout >= BigWinFactor*o.Bet {
		types = append(types, AchBigWin)
	}
	if o.Jackpot {
		types = append(types, AchJackpot)
	}
	if o.StraightHit {
		types = append(types, AchLuckyNumber)
	}
	if o.GameType == model.GameLandmines && o.Payout > 0 && o.SafeRevealed >= MinesweeperReveals {
		types = append(types, AchMinesweeper)
	}
	if o.GameType == model.GameCrash && o.Payout > 0 && o.Multiplier >= SkyHighMultiplier {
		types = append(types, AchSkyHigh)
	}
	if o.TaskDone {
		types = append(types, AchBackFromZero)
	}
	return types
}

// AchievementService awards and lists achievements.
type AchievementService struct {
	repo *repository.AchievementRepository
}

// NewAchievementService creates a new AchievementService instance.
func NewAchievementService(repo *repository.AchievementRepository) *AchievementService {
	return &AchievementService{repo: repo}
}

// Award unlocks every achievement o qualifies for and returns the newly
// unlocked ones. Failures are logged; awarding never fails a settlement.
func (s *AchievementService) Award(ctx context.Context, userID uuid.UUID, o Outcome) []string {
	if s == nil {
		return nil
	}

	var unlocked []string
	for _, t := range Unlocked(o) {
		ok, err := s.repo.Unlock(ctx, userID, t, map[string]any{
			"game":   o.GameType,
			"bet":    o.Bet,
			"payout": o.Payout,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("user_id", userID.String()).
				Str("achievement", t).
				Msg("Failed to unlock achievement")
			continue
		}
		if ok {
			log.Info().
				Str("user_id", userID.String()).
				Str("achievement", t).
				Msg("Achievement unlocked")
			unlocked = append(unlocked, t)
		}
	}
	return unlocked
}

// List returns the user's achievements.
func (s *AchievementService) List(ctx context.Context, userID uuid.UUID) ([]*model.Achievement, error) {
	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Achievement{}
	}
	return list, nil
}
