package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRing_ZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

func TestRing_NonBlockingFullEmpty(t *testing.T) {
	r := New[int](2)
	require.NoError(t, r.Put(1, false, 0))
	require.NoError(t, r.Put(2, false, 0))
	assert.True(t, r.Full())
	assert.ErrorIs(t, r.Put(3, false, 0), ErrFull)

	v, err := r.Get(false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = r.Get(false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	assert.True(t, r.Empty())
	_, err = r.Get(false, 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRing_BlockingTimeout(t *testing.T) {
	r := New[int](1)
	start := time.Now()
	_, err := r.Get(true, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestRing_CapacityOneSerializesProducerConsumer(t *testing.T) {
	r := New[int](1)
	var wg sync.WaitGroup
	const n = 200
	results := make([]int, 0, n)
	var resultsMu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			require.NoError(t, r.Put(i, true, 0))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			v, err := r.Get(true, 0)
			require.NoError(t, err)
			resultsMu.Lock()
			results = append(results, v)
			resultsMu.Unlock()
		}
	}()
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, i, v)
	}
}

// TestRing_FIFOProperty is the property-based rendition of spec.md §8
// invariant 1/2: size never exceeds capacity or drops below zero, and a
// single producer/consumer pair observes strict FIFO ordering.
func TestRing_FIFOProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 32).Draw(rt, "capacity")
		r := New[int](capacity)

		produced := make([]int, 0)
		consumed := make([]int, 0)

		ops := rapid.SliceOfN(rapid.IntRange(0, 1), 1, 200).Draw(rt, "ops")
		next := 0
		for _, op := range ops {
			if op == 0 {
				if err := r.Put(next, false, 0); err == nil {
					produced = append(produced, next)
					next++
				}
			} else {
				if v, err := r.Get(false, 0); err == nil {
					consumed = append(consumed, v)
				}
			}
			if r.Len() < 0 || r.Len() > capacity {
				rt.Fatalf("ring size out of bounds: %d (capacity %d)", r.Len(), capacity)
			}
		}
		// drain remainder to compare full FIFO prefix
		for {
			v, err := r.Get(false, 0)
			if err != nil {
				break
			}
			consumed = append(consumed, v)
		}
		if len(consumed) > len(produced) {
			rt.Fatalf("consumed more than produced")
		}
		for i, v := range consumed {
			if v != produced[i] {
				rt.Fatalf("FIFO violated at %d: got %d want %d", i, v, produced[i])
			}
		}
	})
}
