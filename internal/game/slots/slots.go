// Package slots implements the three-reel slot machine.
package slots

import (
	"chips-casino/internal/game"
	"chips-casino/internal/pkg/rng"
)

// Symbol is a reel symbol, ordered from lowest to highest value.
type Symbol string

const (
	Cherry  Symbol = "CHERRY"
	Lemon   Symbol = "LEMON"
	Bar     Symbol = "BAR"
	Seven   Symbol = "SEVEN"
	Diamond Symbol = "DIAMOND"
)

// Reels is the result of one spin, left to right.
type Reels [3]Symbol

// Weighted reel pool. Each reel draws one entry uniformly,
// giving CHERRY:LEMON:BAR:SEVEN:DIAMOND = 4:3:2:1:1.
var reelPool = [...]Symbol{
	Cherry, Cherry, Cherry, Cherry,
	Lemon, Lemon, Lemon,
	Bar, Bar,
	Seven,
	Diamond,
}

// Multipliers for three of a kind.
var tripleMultipliers = map[Symbol]float64{
	Diamond: 20,
	Seven:   10,
	Bar:     6,
	Cherry:  4,
	Lemon:   3,
}

// Multipliers for exactly two of a kind, keyed by the paired symbol.
var pairMultipliers = map[Symbol]float64{
	Diamond: 3,
	Seven:   3,
	Bar:     2,
	Cherry:  1.5,
	Lemon:   1.5,
}

// Pool returns a copy of the weighted reel pool.
func Pool() []Symbol {
	pool := make([]Symbol, len(reelPool))
	copy(pool, reelPool[:])
	return pool
}

// TripleMultiplier returns the three-of-a-kind multiplier for s.
func TripleMultiplier(s Symbol) float64 { return tripleMultipliers[s] }

// PairMultiplier returns the two-of-a-kind multiplier for s.
func PairMultiplier(s Symbol) float64 { return pairMultipliers[s] }

// Outcome is the settled result of one spin.
type Outcome struct {
	Reels         Reels       `json:"reels"`
	Multiplier    float64     `json:"multiplier"`
	GrossWinnings int64       `json:"grossWinnings"`
	Net           int64       `json:"net"`
	Result        game.Result `json:"result"`
}

// IsJackpot reports whether the spin hit three diamonds.
func (o *Outcome) IsJackpot() bool {
	return o.Reels[0] == Diamond && o.Reels[1] == Diamond && o.Reels[2] == Diamond
}

// Config holds configuration for the slot machine.
type Config struct {
	MinBet int64
	MaxBet int64
	Source rng.Source
}

// Slots implements game.Game for the slot machine.
type Slots struct {
	game.Limits
	src rng.Source
}

// New creates a slot machine. A nil source falls back to the crypto source.
func New(cfg *Config) *Slots {
	s := &Slots{Limits: game.NewLimits(0, 0), src: rng.Crypto()}
	if cfg != nil {
		s.Limits = game.NewLimits(cfg.MinBet, cfg.MaxBet)
		if cfg.Source != nil {
			s.src = cfg.Source
		}
	}
	return s
}

// Info returns the catalog entry.
func (s *Slots) Info() game.Info {
	return game.Info{
		ID:          "slots",
		Name:        "Slots",
		Description: "Spin the reels and win big",
		Route:       "/games/slots",
		Emoji:       "🎰",
		Status:      game.StatusActive,
	}
}

// Spin draws three reels and evaluates them against bet.
// The bet range is validated by the caller.
func (s *Slots) Spin(bet int64) *Outcome {
	reels := Reels{s.draw(), s.draw(), s.draw()}
	return Evaluate(bet, reels)
}

func (s *Slots) draw() Symbol {
	return reelPool[s.src.IntN(len(reelPool))]
}

// Multiplier returns the payout multiplier for a set of reels.
func Multiplier(r Reels) float64 {
	a, b, c := r[0], r[1], r[2]
	switch {
	case a == b && b == c:
		return tripleMultipliers[a]
	case a == b || a == c || b == c:
		paired := c
		if a == b {
			paired = a
		}
		return pairMultipliers[paired]
	default:
		return 0
	}
}

// Evaluate settles bet against the given reels.
// The bet is always forfeit, so net = floor(bet*multiplier) - bet.
func Evaluate(bet int64, r Reels) *Outcome {
	mult := Multiplier(r)
	gross := game.Payout(bet, mult)
	net := gross - bet
	return &Outcome{
		Reels:         r,
		Multiplier:    mult,
		GrossWinnings: gross,
		Net:           net,
		Result:        game.Classify(net),
	}
}
