package id

import (
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StrictlyIncreasingWithinMillisecond(t *testing.T) {
	prev := New()
	sameMs := 0
	for i := 0; i < 10000; i++ {
		next := New()
		require.Greater(t, next, prev)
		if ulid.MustParse(next).Time() == ulid.MustParse(prev).Time() {
			sameMs++
		}
		prev = next
	}
	// The loop is fast enough that many pairs share a timestamp.
	assert.Positive(t, sameMs)
}

func TestNew_UniqueAcrossGoroutines(t *testing.T) {
	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v := New()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}
