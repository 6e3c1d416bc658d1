package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWithLockSerializesSameKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 30).Draw(t, "numOps")
		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}
		key := rapid.StringMatching(`[a-f0-9]{8}`).Draw(t, "key")

		kl := New()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				_ = kl.WithLock(key, func() error {
					balance += amount
					return nil
				})
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance %d, want %d", balance, expected)
		}
		if kl.Len() != 0 {
			t.Fatalf("%d keys left after all holders released", kl.Len())
		}
	})
}

func TestIndependentKeys(t *testing.T) {
	kl := New()
	kl.Lock("round-a")
	defer kl.Unlock("round-a")

	done := make(chan struct{})
	go func() {
		kl.Lock("round-b")
		kl.Unlock("round-b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on round-b blocked behind round-a")
	}
}

func TestTryLock(t *testing.T) {
	kl := New()

	require.True(t, kl.TryLock("k"))
	assert.True(t, kl.IsLocked("k"))
	assert.False(t, kl.TryLock("k"))

	kl.Unlock("k")
	assert.False(t, kl.IsLocked("k"))
	assert.Equal(t, 0, kl.Len())

	// unlocking an unheld key is harmless
	kl.Unlock("k")
	assert.True(t, kl.TryLock("k"))
	kl.Unlock("k")
}

func TestLockContextTimeout(t *testing.T) {
	kl := New()
	kl.Lock("k")

	err := kl.LockContext(context.Background(), "k", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = kl.LockContext(ctx, "k", 0)
	assert.ErrorIs(t, err, context.Canceled)

	kl.Unlock("k")
	assert.Equal(t, 0, kl.Len())

	require.NoError(t, kl.LockContext(context.Background(), "k", time.Second))
	kl.Unlock("k")
}

func TestWithLockContextWaitsForHolder(t *testing.T) {
	kl := New()
	kl.Lock("session")

	released := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(released)
		kl.Unlock("session")
	}()

	ran := false
	err := kl.WithLockContext(context.Background(), "session", time.Second, func() error {
		select {
		case <-released:
		default:
			return fmt.Errorf("ran before the holder released")
		}
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 0, kl.Len())
}
