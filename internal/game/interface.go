// Package game defines the shared game contract, payout math and the game catalog.
package game

import (
	"errors"
	"fmt"
)

// Bet limits shared by every game.
const (
	DefaultMinBet = 1
	DefaultMaxBet = 1_000_000
)

// Errors for bet validation.
var (
	ErrBetTooLow  = errors.New("bet amount is below the minimum")
	ErrBetTooHigh = errors.New("bet exceeds maximum allowed")
)

// Status tells whether a game can be played.
type Status string

const (
	StatusActive     Status = "active"
	StatusComingSoon Status = "coming-soon"
)

// Result classifies the outcome of a settled round.
type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultTie  Result = "tie"
)

// Classify maps a net chip change to a result.
func Classify(net int64) Result {
	switch {
	case net > 0:
		return ResultWin
	case net == 0:
		return ResultTie
	default:
		return ResultLoss
	}
}

// Info is the catalog entry for a game.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Route       string `json:"route"`
	Emoji       string `json:"emoji"`
	Status      Status `json:"status"`
}

// Game is implemented by every engine so the catalog and the settlement
// layer can treat them uniformly.
type Game interface {
	// Info returns the catalog metadata.
	Info() Info

	// MinBet returns the minimum allowed stake.
	MinBet() int64

	// MaxBet returns the maximum allowed stake.
	MaxBet() int64

	// ValidateBet checks a single stake against the game's limits.
	ValidateBet(bet int64) error
}

// Limits holds a bet range and implements the bet half of Game.
type Limits struct {
	Min int64
	Max int64
}

// NewLimits returns limits with defaults for zero values.
func NewLimits(min, max int64) Limits {
	if min <= 0 {
		min = DefaultMinBet
	}
	if max <= 0 {
		max = DefaultMaxBet
	}
	return Limits{Min: min, Max: max}
}

func (l Limits) MinBet() int64 { return l.Min }
func (l Limits) MaxBet() int64 { return l.Max }

// ValidateBet checks that bet lies within [Min, Max].
func (l Limits) ValidateBet(bet int64) error {
	if bet < l.Min {
		return fmt.Errorf("%w: min bet is %d", ErrBetTooLow, l.Min)
	}
	if bet > l.Max {
		return fmt.Errorf("%w: max bet is %d", ErrBetTooHigh, l.Max)
	}
	return nil
}
