// Package roulette implements a European single-zero roulette wheel.
package roulette

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"chips-casino/internal/game"
	"chips-casino/internal/pkg/rng"
)

const (
	// Pockets is the number of pockets on the wheel, 0 through 36.
	Pockets = 37

	// DefaultMaxBets is the maximum number of bets in one spin.
	DefaultMaxBets = 32

	straightPayout   = 35
	evenMoneyPayout  = 2
	lowHighBoundary  = 18
	highestPocketNum = Pockets - 1
)

// Color of a pocket.
type Color string

const (
	Red   Color = "red"
	Black Color = "black"
	Green Color = "green"
)

// BetType selects which property of the winning pocket a bet is on.
type BetType string

const (
	Straight BetType = "straight"
	ColorBet BetType = "color"
	OddEven  BetType = "odd_even"
	LowHigh  BetType = "low_high"
)

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true,
	12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true,
	30: true, 32: true, 34: true, 36: true,
}

// Validation errors.
var (
	ErrNoBets       = errors.New("at least one bet is required")
	ErrTooManyBets  = errors.New("too many bets for a single spin")
	ErrBetFormat    = errors.New("invalid bet format")
	ErrUnsupported  = errors.New("unsupported bet type")
	ErrInvalidValue = errors.New("invalid bet value")
)

// ColorOf returns the color of pocket n.
func ColorOf(n int) Color {
	if n == 0 {
		return Green
	}
	if redNumbers[n] {
		return Red
	}
	return Black
}

// RedNumbers returns the red pockets in ascending order.
func RedNumbers() []int {
	nums := make([]int, 0, len(redNumbers))
	for n := 1; n <= highestPocketNum; n++ {
		if redNumbers[n] {
			nums = append(nums, n)
		}
	}
	return nums
}

// Value is a bet value: a pocket number for straight bets, a label otherwise.
// It decodes from either a JSON number or a JSON string.
type Value struct {
	Number   int
	Label    string
	IsNumber bool
}

// Num returns a numeric value.
func Num(n int) Value { return Value{Number: n, IsNumber: true} }

// Label returns a label value such as "red" or "odd".
func Label(s string) Value { return Value{Label: s} }

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNumber {
		return []byte(strconv.Itoa(v.Number)), nil
	}
	return json.Marshal(v.Label)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Label(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("bet value must be a number or a string: %w", err)
	}
	if f != float64(int(f)) {
		// fractional pockets never match
		*v = Value{Number: -1, IsNumber: true}
		return nil
	}
	*v = Num(int(f))
	return nil
}

// Bet is a single wager on the layout.
type Bet struct {
	Type   BetType `json:"type"`
	Value  Value   `json:"value"`
	Amount int64   `json:"amount"`
}

// BetResult pairs a bet with what it paid.
type BetResult struct {
	Bet    Bet   `json:"bet"`
	Payout int64 `json:"payout"`
}

// Settlement is the aggregate result of one spin.
type Settlement struct {
	WinningNumber int         `json:"winningNumber"`
	WinningColor  Color       `json:"winningColor"`
	Bets          []BetResult `json:"bets"`
	TotalStake    int64       `json:"totalStake"`
	TotalPayout   int64       `json:"totalPayout"`
	Net           int64       `json:"net"`
}

// Result classifies the settlement by its net.
func (s *Settlement) Result() game.Result { return game.Classify(s.Net) }

// HasStraightWin reports whether any straight-up bet hit.
func (s *Settlement) HasStraightWin() bool {
	for _, r := range s.Bets {
		if r.Bet.Type == Straight && r.Payout > 0 {
			return true
		}
	}
	return false
}

// EvaluateBet returns the gross payout of bet for the winning pocket.
// A value of the wrong shape for its type pays nothing.
func EvaluateBet(bet Bet, winning int) int64 {
	switch bet.Type {
	case Straight:
		if !bet.Value.IsNumber {
			return 0
		}
		if bet.Value.Number == winning {
			return bet.Amount * straightPayout
		}
		return 0
	case ColorBet:
		if bet.Value.IsNumber || (bet.Value.Label != string(Red) && bet.Value.Label != string(Black)) {
			return 0
		}
		if winning == 0 {
			return 0
		}
		if Color(bet.Value.Label) == ColorOf(winning) {
			return bet.Amount * evenMoneyPayout
		}
		return 0
	case OddEven:
		if bet.Value.IsNumber || (bet.Value.Label != "odd" && bet.Value.Label != "even") {
			return 0
		}
		if winning == 0 {
			return 0
		}
		if (winning%2 == 1) == (bet.Value.Label == "odd") {
			return bet.Amount * evenMoneyPayout
		}
		return 0
	case LowHigh:
		if bet.Value.IsNumber || (bet.Value.Label != "low" && bet.Value.Label != "high") {
			return 0
		}
		if winning == 0 {
			return 0
		}
		if (winning <= lowHighBoundary) == (bet.Value.Label == "low") {
			return bet.Amount * evenMoneyPayout
		}
		return 0
	default:
		return 0
	}
}

// EvaluateBets settles every bet against one winning pocket.
func EvaluateBets(bets []Bet, winning int) *Settlement {
	s := &Settlement{
		WinningNumber: winning,
		WinningColor:  ColorOf(winning),
		Bets:          make([]BetResult, 0, len(bets)),
	}
	for _, b := range bets {
		payout := EvaluateBet(b, winning)
		s.TotalStake += b.Amount
		s.TotalPayout += payout
		s.Bets = append(s.Bets, BetResult{Bet: b, Payout: payout})
	}
	s.Net = s.TotalPayout - s.TotalStake
	return s
}

// Config holds configuration for the wheel.
type Config struct {
	MinBet  int64
	MaxBet  int64
	MaxBets int
	Source  rng.Source
}

// Roulette implements game.Game for the wheel.
type Roulette struct {
	game.Limits
	maxBets int
	src     rng.Source
}

// New creates a wheel. A nil source falls back to the crypto source.
func New(cfg *Config) *Roulette {
	r := &Roulette{Limits: game.NewLimits(0, 0), maxBets: DefaultMaxBets, src: rng.Crypto()}
	if cfg != nil {
		r.Limits = game.NewLimits(cfg.MinBet, cfg.MaxBet)
		if cfg.MaxBets > 0 {
			r.maxBets = cfg.MaxBets
		}
		if cfg.Source != nil {
			r.src = cfg.Source
		}
	}
	return r
}

// Info returns the catalog entry.
func (r *Roulette) Info() game.Info {
	return game.Info{
		ID:          "roulette",
		Name:        "Roulette",
		Description: "Bet on numbers, colors, or ranges",
		Route:       "/games/roulette",
		Emoji:       "🎲",
		Status:      game.StatusActive,
	}
}

// MaxBets returns the maximum number of bets per spin.
func (r *Roulette) MaxBets() int { return r.maxBets }

// Spin draws a winning pocket and settles bets against it.
// Bets are expected to have passed ValidateBets.
func (r *Roulette) Spin(bets []Bet) *Settlement {
	return EvaluateBets(bets, r.src.IntN(Pockets))
}

// ValidateBets applies the table rules to a batch of bets and returns the
// total stake.
func (r *Roulette) ValidateBets(bets []Bet) (int64, error) {
	if len(bets) == 0 {
		return 0, ErrNoBets
	}
	if len(bets) > r.maxBets {
		return 0, fmt.Errorf("%w: max is %d", ErrTooManyBets, r.maxBets)
	}

	var total int64
	for i, b := range bets {
		if b.Type == "" {
			return 0, fmt.Errorf("%w: bet %d has no type", ErrBetFormat, i)
		}
		if err := r.ValidateBet(b.Amount); err != nil {
			return 0, fmt.Errorf("bet %d: %w", i, err)
		}
		if err := validateValue(b); err != nil {
			return 0, fmt.Errorf("bet %d: %w", i, err)
		}
		total += b.Amount
	}
	return total, nil
}

func validateValue(b Bet) error {
	v := b.Value
	switch b.Type {
	case Straight:
		if !v.IsNumber || v.Number < 0 || v.Number > highestPocketNum {
			return fmt.Errorf("%w: straight bets take a number from 0 to 36", ErrInvalidValue)
		}
	case ColorBet:
		if v.IsNumber || (v.Label != string(Red) && v.Label != string(Black)) {
			return fmt.Errorf("%w: color bets take red or black", ErrInvalidValue)
		}
	case OddEven:
		if v.IsNumber || (v.Label != "odd" && v.Label != "even") {
			return fmt.Errorf("%w: odd_even bets take odd or even", ErrInvalidValue)
		}
	case LowHigh:
		if v.IsNumber || (v.Label != "low" && v.Label != "high") {
			return fmt.Errorf("%w: low_high bets take low or high", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupported, b.Type)
	}
	return nil
}
