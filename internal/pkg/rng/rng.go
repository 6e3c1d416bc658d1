// Package rng provides the random sources used by the game engines.
package rng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/big"
	"math/rand/v2"
	"sync"
)

// Source supplies uniform random draws.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// cryptoSource reads from crypto/rand.
type cryptoSource struct{}

// Crypto returns a cryptographically strong source.
// Crash points are drawn from this source.
func Crypto() Source { return cryptoSource{} }

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		return rand.Float64()
	}
	// 53 random bits give every representable value in [0, 1) with step 2^-53
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func (cryptoSource) IntN(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to IntN")
	}
	v, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return rand.IntN(n)
	}
	return int(v.Int64())
}

// mathSource uses the runtime-seeded math/rand/v2 generator.
type mathSource struct{}

// Math returns a fast uniform source for draws where fairness does not depend
// on unpredictability.
func Math() Source { return mathSource{} }

func (mathSource) Float64() float64 { return rand.Float64() }
func (mathSource) IntN(n int) int   { return rand.IntN(n) }

// Seeded is a reproducible source, safe for concurrent use.
type Seeded struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a PCG-backed source for simulations and tests.
func NewSeeded(seed uint64) *Seeded {
	return &Seeded{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *Seeded) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// Fixed replays a scripted sequence of draws. Float64 values are consumed from
// Floats and IntN values from Ints, each wrapping around when exhausted.
// Intended for tests that need an exact outcome.
type Fixed struct {
	Floats []float64
	Ints   []int

	mu sync.Mutex
	fi int
	ii int
}

func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Floats) == 0 {
		return 0
	}
	v := f.Floats[f.fi%len(f.Floats)]
	f.fi++
	return v
}

func (f *Fixed) IntN(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Ints) == 0 {
		return 0
	}
	v := f.Ints[f.ii%len(f.Ints)]
	f.ii++
	if v < 0 || v >= n {
		v = ((v % n) + n) % n
	}
	return v
}
