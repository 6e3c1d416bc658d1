package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chips-casino/internal/game/crash"
)

func TestResolveDue(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r := &crash.Round{BetAmount: 100, CrashMultiplier: 2, StartedAt: start, State: crash.StateRunning}
	crashAt := r.CrashesAt()
	grace := 250 * time.Millisecond

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"curve still rising", crashAt.Add(-100 * time.Millisecond), false},
		{"at the crash instant", crashAt, false},
		{"inside the grace", crashAt.Add(grace - time.Millisecond), false},
		{"grace elapsed", crashAt.Add(grace), true},
		{"long after", crashAt.Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveDue(r, tt.now, grace))
		})
	}

	assert.True(t, resolveDue(r, crashAt.Add(time.Millisecond), 0))
}
