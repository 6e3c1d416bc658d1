// Integration tests run against a PostgreSQL testcontainer.
package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chips-casino/internal/model"
	"chips-casino/internal/pkg/db"
	"chips-casino/internal/pkg/db/dbtest"
)

// setupTestDB creates a PostgreSQL container with the schema applied.
// Migrations run twice to check they are re-runnable.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	pool := dbtest.Setup(t)
	require.NoError(t, db.Migrate(context.Background(), pool))
	return pool
}

func createUser(t *testing.T, repo *UserRepository, balance int64) *model.User {
	t.Helper()
	user, created, err := repo.GetOrCreate(context.Background(), uuid.New(), "player", false, balance)
	require.NoError(t, err)
	require.True(t, created)
	return user
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewUserRepository(pool)
	ctx := context.Background()
	id := uuid.New()

	user, created, err := repo.GetOrCreate(ctx, id, "alice", false, 10000)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, int64(10000), user.Balance)
	assert.Nil(t, user.LastDailyBonusAt)

	// second sight keeps the balance and follows the claims
	user, created, err = repo.GetOrCreate(ctx, id, "alice2", true, 999)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice2", user.Username)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, int64(10000), user.Balance)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_DebitCredit(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, repo, 100)

	updated, err := repo.Debit(ctx, user.ID, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), updated.Balance)

	_, err = repo.Debit(ctx, user.ID, 41)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	updated, err = repo.Credit(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(50), updated.Balance)

	updated, err = repo.Adjust(ctx, user.ID, -50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.Balance)

	_, err = repo.Debit(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, repo, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Debit(ctx, user.ID, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	final, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.Balance)
}

func TestUserRepository_ClaimDaily(t *testing.T) {
	pool := setupTestDB(t)

	repo := NewUserRepository(pool)
	ctx := context.Background()
	user := createUser(t, repo, 0)
	now := time.Now().UTC().Truncate(time.Microsecond)

	updated, err := repo.ClaimDaily(ctx, user.ID, 100000, 24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), updated.Balance)
	require.NotNil(t, updated.LastDailyBonusAt)
	assert.True(t, now.Equal(*updated.LastDailyBonusAt))

	_, err = repo.ClaimDaily(ctx, user.ID, 100000, 24*time.Hour, now.Add(23*time.Hour))
	assert.ErrorIs(t, err, ErrDailyNotReady)

	updated, err = repo.ClaimDaily(ctx, user.ID, 100000, 24*time.Hour, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(200000), updated.Balance)
}

// ============================================================================
// Transaction manager
// ============================================================================

func TestTxManagerRollsBackAllRepositories(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	users := NewUserRepository(pool)
	txs := NewTransactionRepository(pool)
	user := createUser(t, users, 100)

	manager, err := db.NewTxManager(pool)
	require.NoError(t, err)

	err = manager.Do(ctx, func(ctx context.Context) error {
		if _, err := users.Debit(ctx, user.ID, 30); err != nil {
			return err
		}
		if err := txs.Create(ctx, &model.Transaction{UserID: user.ID, GameType: model.GameSlots, Amount: -30, BalanceAfter: 70}); err != nil {
			return err
		}
		// the second debit fails and takes the first one with it
		_, err := users.Debit(ctx, user.ID, 1000)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	final, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), final.Balance)

	list, err := txs.ListByUser(ctx, user.ID, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// ============================================================================
// Ledger listings
// ============================================================================

func TestLedgerListings(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	users := NewUserRepository(pool)
	txs := NewTransactionRepository(pool)
	history := NewHistoryRepository(pool)
	user := createUser(t, users, 100)

	for i, game := range []string{model.GameSlots, model.GameRoulette, model.GameSlots} {
		require.NoError(t, txs.Create(ctx, &model.Transaction{
			UserID: user.ID, GameType: game, Amount: int64(-10 * (i + 1)), BalanceAfter: 90, Reason: "bet",
		}))
		require.NoError(t, history.Create(ctx, &model.GameHistory{
			UserID: user.ID, GameType: game, BetAmount: 10, Result: "win", Winnings: int64(i),
		}))
	}

	all, err := txs.ListByUser(ctx, user.ID, ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(-30), all[0].Amount, "newest first")

	slots, err := history.ListByUser(ctx, user.ID, ListFilter{GameType: model.GameSlots})
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	limited, err := history.ListByUser(ctx, user.ID, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	future := time.Now().Add(time.Hour)
	before, err := history.ListByUser(ctx, user.ID, ListFilter{Before: &future})
	require.NoError(t, err)
	assert.Len(t, before, 3)

	wins, err := history.CountWins(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), wins)
}

// ============================================================================
// Game state repositories
// ============================================================================

func TestMinesRepository_Transitions(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	user := createUser(t, NewUserRepository(pool), 100)
	repo := NewMinesRepository(pool)

	s := &model.MinesSession{
		ID: uuid.New(), UserID: user.ID, BetAmount: 10, GridSize: 5, MineCount: 3,
		MinesLayout: []int{1, 7, 20}, State: "in_progress",
	}
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7, 20}, got.MinesLayout)
	assert.Empty(t, got.RevealedCells)
	assert.True(t, got.IsActive)

	require.NoError(t, repo.RecordReveal(ctx, s.ID, 0, []int{4}, 1))
	// a stale reveal based on the old count is rejected
	assert.ErrorIs(t, repo.RecordReveal(ctx, s.ID, 0, []int{5}, 1), ErrConcurrentUpdate)

	payout := int64(11)
	// a cash-out priced on the board before the last reveal is rejected
	assert.ErrorIs(t, repo.Finish(ctx, s.ID, 0, "cashed_out", nil, 0, &payout), ErrConcurrentUpdate)
	got, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, 1, got.SafeRevealed)

	require.NoError(t, repo.Finish(ctx, s.ID, 1, "cashed_out", []int{4}, 1, &payout))
	assert.ErrorIs(t, repo.Finish(ctx, s.ID, 1, "cashed_out", []int{4}, 1, &payout), ErrAlreadyFinished)
	assert.ErrorIs(t, repo.Finish(ctx, uuid.New(), 0, "lost", nil, 0, nil), ErrSessionNotFound)
	assert.ErrorIs(t, repo.RecordReveal(ctx, s.ID, 1, []int{4, 6}, 2), ErrConcurrentUpdate)

	got, err = repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, []int{4}, got.RevealedCells)
	require.NotNil(t, got.Payout)
	assert.Equal(t, int64(11), *got.Payout)
	assert.NotNil(t, got.FinishedAt)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCrashRepository_FinishOnce(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	user := createUser(t, NewUserRepository(pool), 100)
	repo := NewCrashRepository(pool)

	round := &model.CrashRound{
		ID: uuid.New(), UserID: user.ID, BetAmount: 50, CrashMultiplier: 2.5,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond), State: "running",
	}
	require.NoError(t, repo.Create(ctx, round))

	got, err := repo.GetByID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.CrashMultiplier)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.CashedOutAt)

	at, payout := 1.39, int64(69)
	require.NoError(t, repo.Finish(ctx, round.ID, "cashed_out", &at, &payout))
	assert.ErrorIs(t, repo.Finish(ctx, round.ID, "crashed", nil, nil), ErrAlreadyFinished)

	got, err = repo.GetByID(ctx, round.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CashedOutAt)
	assert.Equal(t, 1.39, *got.CashedOutAt)
	assert.Equal(t, "cashed_out", got.State)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRoundNotFound)
}

func TestTaskRepository(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	user := createUser(t, NewUserRepository(pool), 0)
	repo := NewTaskRepository(pool)

	configs, err := repo.ListConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 5)

	cfg, err := repo.GetConfig(ctx, "math")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.RewardAmount)
	assert.Equal(t, 300, cfg.CooldownSeconds)

	updated, err := repo.UpdateConfig(ctx, "math", 2000, 60, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), updated.RewardAmount)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, user.ID, *updated.UpdatedBy)

	_, err = repo.GetConfig(ctx, "chess")
	assert.ErrorIs(t, err, ErrTaskTypeNotFound)

	last, err := repo.LastCompletion(ctx, user.ID, "math")
	require.NoError(t, err)
	assert.Nil(t, last)

	c := &model.TaskCompletion{UserID: user.ID, TaskType: "math", RewardAmount: 2000, Metadata: map[string]any{"correct": 20}}
	require.NoError(t, repo.CreateCompletion(ctx, c))
	assert.NotZero(t, c.ID)

	last, err = repo.LastCompletion(ctx, user.ID, "math")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.WithinDuration(t, c.CompletedAt, *last, time.Millisecond)
}

func TestAchievementRepository_UnlockOnce(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	user := createUser(t, NewUserRepository(pool), 0)
	repo := NewAchievementRepository(pool)

	unlocked, err := repo.Unlock(ctx, user.ID, "first_win", map[string]any{"game": "slots"})
	require.NoError(t, err)
	assert.True(t, unlocked)

	unlocked, err = repo.Unlock(ctx, user.ID, "first_win", nil)
	require.NoError(t, err)
	assert.False(t, unlocked)

	list, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first_win", list[0].Type)
	assert.Equal(t, "slots", list[0].Data["game"])
}

func TestChallengeRepository(t *testing.T) {
	pool := setupTestDB(t)

	ctx := context.Background()
	users := NewUserRepository(pool)
	alice := createUser(t, users, 100)
	bob := createUser(t, users, 100)
	repo := NewChallengeRepository(pool)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	at := day.Add(10 * time.Hour)

	c, err := repo.Ensure(ctx, &model.DailyChallenge{
		Date: day, GameType: model.GameSlots, StartingBalance: 10000, PrizePool: 50000, EndTime: day.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.GameSlots, c.GameType)
	assert.True(t, c.IsActive)
	assert.Zero(t, c.EntryCount)

	// a second creation for the same day keeps the first challenge
	again, err := repo.Ensure(ctx, &model.DailyChallenge{
		Date: day, GameType: model.GameCrash, StartingBalance: 1, PrizePool: 1, EndTime: day.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, model.GameSlots, again.GameType)

	_, err = repo.Ensure(ctx, &model.DailyChallenge{
		Date: day.AddDate(0, 0, -1), GameType: model.GameRoulette, StartingBalance: 10000, PrizePool: 50000, EndTime: day,
	})
	require.NoError(t, err)

	entry, created, err := repo.CreateEntry(ctx, c.ID, alice.ID, c.StartingBalance, at)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(10000), entry.FinalBalance)
	assert.Equal(t, 1, entry.EntriesCount)

	dup, created, err := repo.CreateEntry(ctx, c.ID, alice.ID, 1, at)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, entry.ID, dup.ID)
	assert.Equal(t, int64(10000), dup.FinalBalance)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.EntryCount)

	// other games and other days leave the entry alone
	_, err = repo.ApplyNet(ctx, alice.ID, model.GameCrash, day, -500, at)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = repo.ApplyNet(ctx, alice.ID, model.GameSlots, day.AddDate(0, 0, -1), -500, at)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = repo.ApplyNet(ctx, bob.ID, model.GameSlots, day, -500, at)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	entry, err = repo.ApplyNet(ctx, alice.ID, model.GameSlots, day, 2500, at)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), entry.FinalBalance)
	assert.Nil(t, entry.CompletedAt)

	// going below zero floors at zero and closes the run
	entry, err = repo.ApplyNet(ctx, alice.ID, model.GameSlots, day, -20000, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, entry.FinalBalance)
	require.NotNil(t, entry.CompletedAt)
	assert.True(t, entry.CompletedAt.Equal(at.Add(time.Minute)))

	_, err = repo.ApplyNet(ctx, alice.ID, model.GameSlots, day, 100, at.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrEntryNotFound)

	restarted, err := repo.RestartEntry(ctx, c.ID, alice.ID, c.StartingBalance, at)
	require.NoError(t, err)
	assert.Equal(t, 2, restarted.EntriesCount)
	assert.Equal(t, int64(10000), restarted.FinalBalance)
	assert.Nil(t, restarted.CompletedAt)
	// settlements after the end time are ignored
	_, err = repo.ApplyNet(ctx, alice.ID, model.GameSlots, day, 100, day.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = repo.RestartEntry(ctx, c.ID, bob.ID, c.StartingBalance, at)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	history, err := repo.ListBefore(ctx, day, 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.GameRoulette, history[0].GameType)

	_, err = repo.GetByDate(ctx, day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	_, err = repo.GetEntry(ctx, c.ID, bob.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
