// Package mines implements the Mines (landmines) grid game.
//
// A session hides mineCount mines in a gridSize x gridSize grid. Each safe
// reveal raises the cash-out multiplier; revealing a mine forfeits the bet.
package mines

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"chips-casino/internal/game"
	"chips-casino/internal/pkg/rng"
)

const (
	MinGridSize      = 3
	MaxGridSize      = 8
	DefaultGridSize  = 5
	DefaultMineCount = 5

	// MaxMultiplier caps the cash-out multiplier.
	MaxMultiplier = 50

	houseEdge = 0.96
)

var (
	ErrInvalidGridSize  = errors.New("grid size must be between 3 and 8")
	ErrInvalidMineCount = errors.New("invalid mine count")
	ErrGameFinished     = errors.New("game is already finished")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrCellRevealed     = errors.New("cell already revealed")
	ErrNothingRevealed  = errors.New("reveal at least one tile before cashing out")
)

// State of a session.
type State string

const (
	StateInProgress State = "in_progress"
	StateHitMine    State = "hit_mine"
	StateCashedOut  State = "cashed_out"
)

// ValidateParams checks grid size and mine count.
func ValidateParams(gridSize, mineCount int) error {
	if gridSize < MinGridSize || gridSize > MaxGridSize {
		return ErrInvalidGridSize
	}
	if mineCount < 1 || mineCount > gridSize*gridSize-1 {
		return fmt.Errorf("%w: must be between 1 and %d", ErrInvalidMineCount, gridSize*gridSize-1)
	}
	return nil
}

// NewLayout shuffles every cell index with Fisher-Yates and returns the
// first mineCount indices, sorted.
func NewLayout(src rng.Source, gridSize, mineCount int) []int {
	cells := make([]int, gridSize*gridSize)
	for i := range cells {
		cells[i] = i
	}
	for i := len(cells) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		cells[i], cells[j] = cells[j], cells[i]
	}
	layout := cells[:mineCount:mineCount]
	slices.Sort(layout)
	return layout
}

// Multiplier returns the cash-out multiplier after safeRevealed safe cells.
// Each reveal compounds the inverse survival probability shaved by the house
// edge. The result lies in [1, MaxMultiplier], rounded to two decimals.
func Multiplier(safeRevealed, mineCount, gridSize int) float64 {
	total := gridSize * gridSize
	maxSafe := total - mineCount
	if safeRevealed <= 0 || mineCount <= 0 || maxSafe <= 0 {
		return 1
	}

	mult := 1.0
	for i := 0; i < safeRevealed && i < maxSafe; i++ {
		surviveProb := 1 - float64(mineCount)/float64(total-i)
		if surviveProb <= 0 {
			break
		}
		mult *= (1 / surviveProb) * houseEdge
	}

	if math.IsNaN(mult) || math.IsInf(mult, 0) || mult < 1 {
		return 1
	}
	return game.RoundMultiplier(math.Min(mult, MaxMultiplier))
}

// Session is the state of one Mines game.
type Session struct {
	BetAmount    int64
	GridSize     int
	MineCount    int
	Mines        []int
	Revealed     []int
	SafeRevealed int
	State        State
}

// RevealResult is the outcome of revealing one cell.
type RevealResult struct {
	CellIndex    int     `json:"cellIndex"`
	HitMine      bool    `json:"hitMine"`
	SafeRevealed int     `json:"safeRevealed"`
	Multiplier   float64 `json:"multiplier"`
}

// CashOutResult is the outcome of cashing out.
type CashOutResult struct {
	Payout       int64   `json:"payout"`
	Multiplier   float64 `json:"multiplier"`
	SafeRevealed int     `json:"safeRevealed"`
}

// IsActive reports whether the session still accepts reveals.
func (s *Session) IsActive() bool { return s.State == StateInProgress }

// Cells returns the number of cells in the grid.
func (s *Session) Cells() int { return s.GridSize * s.GridSize }

// IsMine reports whether cell hides a mine.
func (s *Session) IsMine(cell int) bool { return slices.Contains(s.Mines, cell) }

// Multiplier returns the current cash-out multiplier.
func (s *Session) Multiplier() float64 {
	return Multiplier(s.SafeRevealed, s.MineCount, s.GridSize)
}

// Reveal uncovers cell. A mine ends the session with multiplier 0.
func (s *Session) Reveal(cell int) (*RevealResult, error) {
	if !s.IsActive() {
		return nil, ErrGameFinished
	}
	if cell < 0 || cell >= s.Cells() {
		return nil, ErrInvalidCell
	}
	if slices.Contains(s.Revealed, cell) {
		return nil, ErrCellRevealed
	}

	s.Revealed = append(s.Revealed, cell)
	if s.IsMine(cell) {
		s.State = StateHitMine
		return &RevealResult{CellIndex: cell, HitMine: true, SafeRevealed: s.SafeRevealed}, nil
	}

	s.SafeRevealed++
	return &RevealResult{
		CellIndex:    cell,
		SafeRevealed: s.SafeRevealed,
		Multiplier:   s.Multiplier(),
	}, nil
}

// CashOut ends the session and pays floor(bet * multiplier).
func (s *Session) CashOut() (*CashOutResult, error) {
	if !s.IsActive() {
		return nil, ErrGameFinished
	}
	if s.SafeRevealed <= 0 {
		return nil, ErrNothingRevealed
	}

	mult := s.Multiplier()
	s.State = StateCashedOut
	return &CashOutResult{
		Payout:       game.Payout(s.BetAmount, mult),
		Multiplier:   mult,
		SafeRevealed: s.SafeRevealed,
	}, nil
}

// Config holds configuration for the Mines game.
type Config struct {
	MinBet           int64
	MaxBet           int64
	DefaultGridSize  int
	DefaultMineCount int
	Source           rng.Source
}

// Mines implements game.Game and starts sessions.
type Mines struct {
	game.Limits
	gridSize  int
	mineCount int
	src       rng.Source
}

// New creates the game. A nil source falls back to the crypto source.
func New(cfg *Config) *Mines {
	m := &Mines{
		Limits:    game.NewLimits(0, 0),
		gridSize:  DefaultGridSize,
		mineCount: DefaultMineCount,
		src:       rng.Crypto(),
	}
	if cfg == nil {
		return m
	}
	m.Limits = game.NewLimits(cfg.MinBet, cfg.MaxBet)
	if cfg.DefaultGridSize > 0 {
		m.gridSize = cfg.DefaultGridSize
	}
	if cfg.DefaultMineCount > 0 {
		m.mineCount = cfg.DefaultMineCount
	}
	if cfg.Source != nil {
		m.src = cfg.Source
	}
	return m
}

// Info returns the catalog entry.
func (m *Mines) Info() game.Info {
	return game.Info{
		ID:          "landmines",
		Name:        "Landmines",
		Description: "Reveal safe tiles and cash out before you hit a mine",
		Route:       "/games/landmines",
		Emoji:       "💣",
		Status:      game.StatusActive,
	}
}

// Defaults returns the grid size and mine count used when a request omits them.
func (m *Mines) Defaults() (gridSize, mineCount int) { return m.gridSize, m.mineCount }

// Start validates the parameters and lays out a new session.
// Zero gridSize or mineCount selects the defaults.
func (m *Mines) Start(bet int64, gridSize, mineCount int) (*Session, error) {
	if gridSize == 0 {
		gridSize = m.gridSize
	}
	if mineCount == 0 {
		mineCount = m.mineCount
	}
	if err := m.ValidateBet(bet); err != nil {
		return nil, err
	}
	if err := ValidateParams(gridSize, mineCount); err != nil {
		return nil, err
	}

	return &Session{
		BetAmount: bet,
		GridSize:  gridSize,
		MineCount: mineCount,
		Mines:     NewLayout(m.src, gridSize, mineCount),
		Revealed:  []int{},
		State:     StateInProgress,
	}, nil
}
