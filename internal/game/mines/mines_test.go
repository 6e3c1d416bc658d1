package mines

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"chips-casino/internal/game"
	"chips-casino/internal/pkg/rng"
)

func TestMultiplier(t *testing.T) {
	tests := []struct {
		name      string
		safe      int
		mineCount int
		gridSize  int
		want      float64
	}{
		{"nothing revealed", 0, 5, 5, 1},
		{"default grid first reveal", 1, 5, 5, 1.2},
		{"default grid second reveal", 2, 5, 5, 1.46},
		{"single mine small grid", 1, 1, 3, 1.08},
		{"single mine large grid floors at one", 1, 1, 8, 1},
		{"one safe cell left", 1, 8, 3, 8.64},
		{"near-full large grid clamps", 1, 63, 8, MaxMultiplier},
		{"no mines", 3, 0, 5, 1},
		{"grid full of mines", 1, 25, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Multiplier(tt.safe, tt.mineCount, tt.gridSize)
			if got != tt.want {
				t.Errorf("Multiplier(%d, %d, %d) = %v, want %v", tt.safe, tt.mineCount, tt.gridSize, got, tt.want)
			}
		})
	}
}

func TestMultiplierMonotoneAndBoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gridSize := rapid.IntRange(MinGridSize, MaxGridSize).Draw(t, "gridSize")
		mineCount := rapid.IntRange(1, gridSize*gridSize-1).Draw(t, "mineCount")
		maxSafe := gridSize*gridSize - mineCount

		prev := 1.0
		for safe := 0; safe <= maxSafe+1; safe++ {
			m := Multiplier(safe, mineCount, gridSize)
			if m < 1 || m > MaxMultiplier {
				t.Fatalf("Multiplier(%d, %d, %d) = %v out of [1, %d]", safe, mineCount, gridSize, m, MaxMultiplier)
			}
			if m < prev {
				t.Fatalf("Multiplier decreased from %v to %v at safe=%d", prev, m, safe)
			}
			prev = m
		}
	})
}

func TestValidateParams(t *testing.T) {
	assert.NoError(t, ValidateParams(3, 1))
	assert.NoError(t, ValidateParams(3, 8))
	assert.NoError(t, ValidateParams(8, 63))

	assert.ErrorIs(t, ValidateParams(2, 1), ErrInvalidGridSize)
	assert.ErrorIs(t, ValidateParams(9, 1), ErrInvalidGridSize)
	assert.ErrorIs(t, ValidateParams(5, 0), ErrInvalidMineCount)
	assert.ErrorIs(t, ValidateParams(5, 25), ErrInvalidMineCount)
}

func TestNewLayoutProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gridSize := rapid.IntRange(MinGridSize, MaxGridSize).Draw(t, "gridSize")
		mineCount := rapid.IntRange(1, gridSize*gridSize-1).Draw(t, "mineCount")
		seed := rapid.Uint64().Draw(t, "seed")

		layout := NewLayout(rng.NewSeeded(seed), gridSize, mineCount)

		if len(layout) != mineCount {
			t.Fatalf("got %d mines, want %d", len(layout), mineCount)
		}
		for i, c := range layout {
			if c < 0 || c >= gridSize*gridSize {
				t.Fatalf("mine %d out of grid", c)
			}
			if i > 0 && layout[i-1] >= c {
				t.Fatalf("layout not strictly ascending: %v", layout)
			}
		}
	})
}

func TestNewLayoutFixedSource(t *testing.T) {
	// always swapping with index 0 rotates the cells left by one
	layout := NewLayout(&rng.Fixed{Ints: []int{0}}, 3, 2)
	assert.Equal(t, []int{1, 2}, layout)
}

func newSession(bet int64, mines ...int) *Session {
	return &Session{
		BetAmount: bet,
		GridSize:  5,
		MineCount: len(mines),
		Mines:     mines,
		Revealed:  []int{},
		State:     StateInProgress,
	}
}

func TestRevealAndCashOut(t *testing.T) {
	s := newSession(100, 0, 1, 2, 3, 4)

	res, err := s.Reveal(10)
	require.NoError(t, err)
	assert.False(t, res.HitMine)
	assert.Equal(t, 1, res.SafeRevealed)
	assert.Equal(t, 1.2, res.Multiplier)

	_, err = s.Reveal(10)
	assert.ErrorIs(t, err, ErrCellRevealed)

	_, err = s.Reveal(25)
	assert.ErrorIs(t, err, ErrInvalidCell)
	_, err = s.Reveal(-1)
	assert.ErrorIs(t, err, ErrInvalidCell)

	out, err := s.CashOut()
	require.NoError(t, err)
	assert.Equal(t, int64(120), out.Payout)
	assert.Equal(t, 1.2, out.Multiplier)
	assert.Equal(t, StateCashedOut, s.State)

	_, err = s.CashOut()
	assert.ErrorIs(t, err, ErrGameFinished)
	_, err = s.Reveal(11)
	assert.ErrorIs(t, err, ErrGameFinished)
}

func TestRevealMineEndsSession(t *testing.T) {
	s := newSession(100, 7, 8)

	_, err := s.Reveal(0)
	require.NoError(t, err)

	res, err := s.Reveal(7)
	require.NoError(t, err)
	assert.True(t, res.HitMine)
	assert.Equal(t, 0.0, res.Multiplier)
	assert.Equal(t, 1, res.SafeRevealed)
	assert.False(t, s.IsActive())
	assert.Equal(t, StateHitMine, s.State)

	_, err = s.CashOut()
	assert.ErrorIs(t, err, ErrGameFinished)
}

func TestCashOutRequiresReveal(t *testing.T) {
	s := newSession(100, 3)
	_, err := s.CashOut()
	assert.ErrorIs(t, err, ErrNothingRevealed)
	assert.True(t, s.IsActive())
}

func TestStart(t *testing.T) {
	m := New(&Config{Source: rng.NewSeeded(42)})

	s, err := m.Start(100, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, s.GridSize)
	assert.Equal(t, 5, s.MineCount)
	assert.Len(t, s.Mines, 5)
	assert.True(t, s.IsActive())

	s, err = m.Start(50, 8, 63)
	require.NoError(t, err)
	assert.Len(t, s.Mines, 63)

	tests := []struct {
		name     string
		bet      int64
		gridSize int
		mines    int
		want     error
	}{
		{"bet too low", 0, 5, 5, game.ErrBetTooLow},
		{"bet too high", game.DefaultMaxBet + 1, 5, 5, game.ErrBetTooHigh},
		{"grid too small", 10, 2, 1, ErrInvalidGridSize},
		{"grid too large", 10, 9, 1, ErrInvalidGridSize},
		{"no safe cells", 10, 3, 9, ErrInvalidMineCount},
		{"negative mines", 10, 3, -1, ErrInvalidMineCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Start(tt.bet, tt.gridSize, tt.mines)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFullClearPaysCappedMultiplierProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gridSize := rapid.IntRange(MinGridSize, MaxGridSize).Draw(t, "gridSize")
		mineCount := rapid.IntRange(1, gridSize*gridSize-1).Draw(t, "mineCount")
		bet := rapid.Int64Range(1, 10_000).Draw(t, "bet")

		m := New(&Config{Source: rng.NewSeeded(rapid.Uint64().Draw(t, "seed"))})
		s, err := m.Start(bet, gridSize, mineCount)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		for cell := 0; cell < s.Cells(); cell++ {
			if s.IsMine(cell) {
				continue
			}
			if _, err := s.Reveal(cell); err != nil {
				t.Fatalf("reveal %d: %v", cell, err)
			}
		}
		if s.SafeRevealed != gridSize*gridSize-mineCount {
			t.Fatalf("revealed %d safe cells", s.SafeRevealed)
		}
		out, err := s.CashOut()
		if err != nil {
			t.Fatalf("cash out: %v", err)
		}
		if out.Payout < bet || out.Payout > bet*MaxMultiplier {
			t.Fatalf("payout %d outside [%d, %d]", out.Payout, bet, bet*MaxMultiplier)
		}
	})
}

func TestMinesInfo(t *testing.T) {
	m := New(&Config{DefaultGridSize: 6, DefaultMineCount: 3})
	g, n := m.Defaults()
	assert.Equal(t, 6, g)
	assert.Equal(t, 3, n)
	assert.Equal(t, "landmines", m.Info().ID)
}
