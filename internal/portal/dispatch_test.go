package portal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCoalescer_ConcurrentCallsForSameKeyShareOneOutcome(t *testing.T) {
	t.Parallel()

	c := NewCoalescer()

	var calls int32

	const n = 20

	var wg sync.WaitGroup

	results := make([]interface{}, n)
	errs := make([]error, n)

	start := make(chan struct{})

	for i := 0; i < n; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			results[i], errs[i] = c.Do("key", func() (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)

				return "value", nil
			})
		}()
	}

	close(start)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "value", results[i])
	}

	// Calls may not perfectly coalesce to 1 if goroutines are scheduled far
	// enough apart that the first call completes before the rest join, but
	// with a 10ms sleep and all starts released simultaneously, it reliably
	// stays far below n.
	require.Less(t, int(calls), n)
}

func TestCoalescer_DifferentKeysRunIndependently(t *testing.T) {
	t.Parallel()

	c := NewCoalescer()

	v1, err := c.Do("a", func() (interface{}, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := c.Do("b", func() (interface{}, error) { return 2, nil })
	require.NoError(t, err)
	require.Equal(t, 2, v2)
}
