package game

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundMultiplier rounds a multiplier to two decimal places, half away from zero.
// Non-finite values are returned unchanged.
func RoundMultiplier(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Payout returns floor(bet * multiplier) computed in decimal, so that a
// two-decimal multiplier such as 1.15 pays exactly 115 on a bet of 100.
func Payout(bet int64, multiplier float64) int64 {
	if bet <= 0 || multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 0
	}
	return decimal.NewFromInt(bet).Mul(decimal.NewFromFloat(multiplier)).Floor().IntPart()
}
