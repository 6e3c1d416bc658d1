// Package crash implements the Crash game.
//
// The crash point is drawn when the round starts. The displayed multiplier
// grows at the same rate in every round and the round crashes once the curve
// reaches the crash point; a cash-out before that pays bet * multiplier.
package crash

import (
	"errors"
	"math"
	"time"

	"chips-casino/internal/game"
	"chips-casino/internal/pkg/rng"
)

const (
	MinCrashMultiplier = 1.01
	MaxCrashMultiplier = 100

	// CurveDurationSeconds is the time the curve takes to reach 50x.
	CurveDurationSeconds = 12

	// DefaultClientTolerance bounds how far a client-reported elapsed time may
	// run ahead of the server clock.
	DefaultClientTolerance = 250 * time.Millisecond

	tailScale   = 3.5
	curveTarget = 50
)

// GrowthRate is the per-second exponent of the curve.
var GrowthRate = math.Log(curveTarget) / CurveDurationSeconds

var (
	ErrRoundNotFound = errors.New("round not found")
	ErrRoundNotOwned = errors.New("round belongs to another user")
	ErrRoundFinished = errors.New("round already finished")
	ErrRoundRunning  = errors.New("round has not crashed yet")
)

// State of a round.
type State string

const (
	StateRunning   State = "running"
	StateCrashed   State = "crashed"
	StateCashedOut State = "cashed_out"
)

// GenerateCrashMultiplier draws a heavy-tailed crash point in
// [MinCrashMultiplier, MaxCrashMultiplier], rounded to two decimals.
func GenerateCrashMultiplier(src rng.Source) float64 {
	u := src.Float64()
	raw := 1 + (-math.Log(1-u) * tailScale)
	if math.IsNaN(raw) {
		raw = MinCrashMultiplier
	}
	return game.RoundMultiplier(math.Min(math.Max(raw, MinCrashMultiplier), MaxCrashMultiplier))
}

// MultiplierAt returns the curve value after elapsed seconds, capped at
// crashPoint and rounded to two decimals.
func MultiplierAt(elapsed, crashPoint float64) float64 {
	if elapsed <= 0 || math.IsNaN(elapsed) {
		return 1
	}
	return game.RoundMultiplier(math.Min(math.Exp(GrowthRate*elapsed), crashPoint))
}

// TimeToReach returns how long the curve takes to reach multiplier m.
func TimeToReach(m float64) time.Duration {
	if m <= 1 {
		return 0
	}
	return time.Duration(math.Log(m) / GrowthRate * float64(time.Second))
}

// Round is the state of one Crash round.
type Round struct {
	BetAmount       int64
	CrashMultiplier float64
	StartedAt       time.Time
	State           State
	// CashedOutAt is the multiplier the player cashed out at, 0 otherwise.
	CashedOutAt float64
}

// Resolution is the outcome of settling a round.
type Resolution struct {
	Crashed           bool    `json:"crashed"`
	CrashMultiplier   float64 `json:"crashMultiplier"`
	FinalMultiplier   float64 `json:"finalMultiplier,omitempty"`
	CashoutMultiplier float64 `json:"cashoutMultiplier,omitempty"`
	Payout            int64   `json:"payout"`
	ElapsedSeconds    float64 `json:"elapsedSeconds"`
}

// IsActive reports whether the round is still running.
func (r *Round) IsActive() bool { return r.State == StateRunning }

// ServerElapsed returns seconds since the round started.
func (r *Round) ServerElapsed(now time.Time) float64 {
	return now.Sub(r.StartedAt).Seconds()
}

// MultiplierAt returns the curve value at now.
func (r *Round) MultiplierAt(now time.Time) float64 {
	return MultiplierAt(r.ServerElapsed(now), r.CrashMultiplier)
}

// HasCrashed reports whether the server-time curve has reached the crash point.
func (r *Round) HasCrashed(now time.Time) bool {
	return r.MultiplierAt(now) >= r.CrashMultiplier
}

// CrashesAt returns the wall-clock time at which the round crashes.
func (r *Round) CrashesAt() time.Time {
	return r.StartedAt.Add(TimeToReach(r.CrashMultiplier))
}

// ResolveCashout settles a cash-out request made at now. A finite,
// non-negative clientElapsed is honoured up to tolerance ahead of the server
// clock. If the curve has reached the crash point the round is settled as
// crashed with no payout.
func (r *Round) ResolveCashout(now time.Time, clientElapsed *float64, tolerance time.Duration) (*Resolution, error) {
	if !r.IsActive() {
		return nil, ErrRoundFinished
	}

	serverElapsed := r.ServerElapsed(now)
	elapsed := serverElapsed
	if clientElapsed != nil {
		c := *clientElapsed
		if !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0 {
			elapsed = math.Min(c, serverElapsed+tolerance.Seconds())
		}
	}

	m := MultiplierAt(elapsed, r.CrashMultiplier)
	if m >= r.CrashMultiplier {
		r.State = StateCrashed
		return &Resolution{
			Crashed:         true,
			CrashMultiplier: r.CrashMultiplier,
			FinalMultiplier: r.CrashMultiplier,
			ElapsedSeconds:  elapsed,
		}, nil
	}

	r.State = StateCashedOut
	r.CashedOutAt = m
	return &Resolution{
		CrashMultiplier:   r.CrashMultiplier,
		CashoutMultiplier: m,
		Payout:            game.Payout(r.BetAmount, m),
		ElapsedSeconds:    elapsed,
	}, nil
}

// ResolveCrashed finalizes a round whose curve has reached the crash point.
func (r *Round) ResolveCrashed(now time.Time) (*Resolution, error) {
	if !r.IsActive() {
		return nil, ErrRoundFinished
	}
	if !r.HasCrashed(now) {
		return nil, ErrRoundRunning
	}

	r.State = StateCrashed
	return &Resolution{
		Crashed:         true,
		CrashMultiplier: r.CrashMultiplier,
		FinalMultiplier: r.CrashMultiplier,
		ElapsedSeconds:  r.ServerElapsed(now),
	}, nil
}

// Config holds configuration for the Crash game.
type Config struct {
	MinBet          int64
	MaxBet          int64
	ClientTolerance time.Duration
	Source          rng.Source
}

// Engine implements game.Game and starts rounds.
type Engine struct {
	game.Limits
	tolerance time.Duration
	src       rng.Source
}

// New creates the engine. Crash points always come from a strong source
// unless one is injected.
func New(cfg *Config) *Engine {
	e := &Engine{
		Limits:    game.NewLimits(0, 0),
		tolerance: DefaultClientTolerance,
		src:       rng.Crypto(),
	}
	if cfg == nil {
		return e
	}
	e.Limits = game.NewLimits(cfg.MinBet, cfg.MaxBet)
	if cfg.ClientTolerance > 0 {
		e.tolerance = cfg.ClientTolerance
	}
	if cfg.Source != nil {
		e.src = cfg.Source
	}
	return e
}

// Info returns the catalog entry.
func (e *Engine) Info() game.Info {
	return game.Info{
		ID:          "crash",
		Name:        "Crash",
		Description: "Cash out before the multiplier crashes",
		Route:       "/games/crash",
		Emoji:       "🚀",
		Status:      game.StatusActive,
	}
}

// Tolerance returns the allowed client clock lead.
func (e *Engine) Tolerance() time.Duration { return e.tolerance }

// Start validates bet and opens a round at now.
func (e *Engine) Start(bet int64, now time.Time) (*Round, error) {
	if err := e.ValidateBet(bet); err != nil {
		return nil, err
	}
	return &Round{
		BetAmount:       bet,
		CrashMultiplier: GenerateCrashMultiplier(e.src),
		StartedAt:       now,
		State:           StateRunning,
	}, nil
}

// CashOut resolves a cash-out on r using the engine's tolerance.
func (e *Engine) CashOut(r *Round, now time.Time, clientElapsed *float64) (*Resolution, error) {
	return r.ResolveCashout(now, clientElapsed, e.tolerance)
}
