// Package model defines the persisted records of the casino ledger.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a ledger account. Identity is owned by the session issuer; the
// ledger keeps the balance and bonus bookkeeping.
type User struct {
	ID               uuid.UUID  `db:"id"`
	Username         string     `db:"username"`
	Balance          int64      `db:"balance"`
	IsAdmin          bool       `db:"is_admin"`
	LastDailyBonusAt *time.Time `db:"last_daily_bonus_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Transaction is one balance change with the balance it left behind.
type Transaction struct {
	ID           int64     `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"-"`
	GameType     string    `db:"game_type" json:"gameType"`
	Amount       int64     `db:"amount" json:"amount"`
	BalanceAfter int64     `db:"balance_after" json:"balanceAfter"`
	Reason       string    `db:"reason" json:"reason"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// GameHistory is one settled round. Winnings is the net chip change.
type GameHistory struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"-"`
	GameType  string    `db:"game_type" json:"gameType"`
	BetAmount int64     `db:"bet_amount" json:"betAmount"`
	Result    string    `db:"result" json:"result"`
	Winnings  int64     `db:"winnings" json:"winnings"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MinesSession is a persisted Mines game. MinesLayout never leaves the server
// while the session is active.
type MinesSession struct {
	ID            uuid.UUID  `db:"id"`
	UserID        uuid.UUID  `db:"user_id"`
	BetAmount     int64      `db:"bet_amount"`
	GridSize      int        `db:"grid_size"`
	MineCount     int        `db:"mine_count"`
	MinesLayout   []int      `db:"mines_layout"`
	RevealedCells []int      `db:"revealed_cells"`
	SafeRevealed  int        `db:"safe_revealed"`
	State         string     `db:"state"`
	IsActive      bool       `db:"is_active"`
	Payout        *int64     `db:"payout"`
	CreatedAt     time.Time  `db:"created_at"`
	FinishedAt    *time.Time `db:"finished_at"`
}

// CrashRound is a persisted Crash round.
type CrashRound struct {
	ID              uuid.UUID  `db:"id"`
	UserID          uuid.UUID  `db:"user_id"`
	BetAmount       int64      `db:"bet_amount"`
	CrashMultiplier float64    `db:"crash_multiplier"`
	StartedAt       time.Time  `db:"started_at"`
	State           string     `db:"state"`
	IsActive        bool       `db:"is_active"`
	CashedOutAt     *float64   `db:"cashed_out_at"`
	Payout          *int64     `db:"payout"`
	FinishedAt      *time.Time `db:"finished_at"`
}

// TaskConfig is the reward and cooldown of one task type.
type TaskConfig struct {
	TaskType        string     `db:"task_type" json:"taskType"`
	RewardAmount    int64      `db:"reward_amount" json:"rewardAmount"`
	CooldownSeconds int        `db:"cooldown_seconds" json:"cooldownSeconds"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	UpdatedBy       *uuid.UUID `db:"updated_by" json:"updatedBy,omitempty"`
}

// TaskCompletion records a rewarded task.
type TaskCompletion struct {
	ID           int64          `db:"id"`
	UserID       uuid.UUID      `db:"user_id"`
	TaskType     string         `db:"task_type"`
	RewardAmount int64          `db:"reward_amount"`
	Metadata     map[string]any `db:"metadata"`
	CompletedAt  time.Time      `db:"completed_at"`
}

// Achievement is an unlocked achievement.
type Achievement struct {
	ID         int64          `db:"id" json:"-"`
	UserID     uuid.UUID      `db:"user_id" json:"-"`
	Type       string         `db:"achievement_type" json:"type"`
	Data       map[string]any `db:"achievement_data" json:"data,omitempty"`
	UnlockedAt time.Time      `db:"unlocked_at" json:"unlockedAt"`
}

// DailyChallenge is the challenge of one calendar day (UTC).
type DailyChallenge struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Date            time.Time `db:"date" json:"-"`
	GameType        string    `db:"game_type" json:"gameType"`
	StartingBalance int64     `db:"starting_balance" json:"startingBalance"`
	PrizePool       int64     `db:"prize_pool" json:"prizePool"`
	EndTime         time.Time `db:"end_time" json:"endTime"`
	IsActive        bool      `db:"is_active" json:"isActive"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	// EntryCount is computed on read.
	EntryCount int64 `db:"entry_count" json:"entryCount"`
}

// ChallengeEntry is one user's run in a daily challenge. FinalBalance moves
// with the user's settled rounds of the challenge game.
type ChallengeEntry struct {
	ID           int64      `db:"id" json:"id"`
	ChallengeID  uuid.UUID  `db:"challenge_id" json:"challengeId"`
	UserID       uuid.UUID  `db:"user_id" json:"userId"`
	FinalBalance int64      `db:"final_balance" json:"finalBalance"`
	EntriesCount int        `db:"entries_count" json:"entriesCount"`
	JoinedAt     time.Time  `db:"joined_at" json:"joinedAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt"`
}

// Ledger categories stored in transactions.game_type and game_history.game_type.
const (
	GameSlots     = "slots"
	GameRoulette  = "roulette"
	GameLandmines = "landmines"
	GameCrash     = "crash"
	DailyBonus    = "daily_bonus"
	TediousTask   = "tedious_task"
	AdminGrant    = "admin"
)

// Transaction reasons.
const (
	ReasonSlotsSpin     = "Slots spin"
	ReasonRouletteSpin  = "Roulette spin"
	ReasonMinesBet      = "Landmines bet"
	ReasonMinesCashout  = "Landmines cashout"
	ReasonCrashBet      = "Crash bet"
	ReasonCrashCashout  = "Crash cashout"
	ReasonDailyBonus    = "Daily bonus"
	ReasonTaskReward    = "Tedious task reward"
	ReasonAdminAddChips = "Admin chip grant"
)

// GameTypes returns the categories that correspond to playable games.
func GameTypes() []string {
	return []string{GameSlots, GameRoulette, GameLandmines, GameCrash}
}
