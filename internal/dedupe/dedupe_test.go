package dedupe_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/dedupe"
)

func TestDedupeCollapsesConcurrentCallsToOneProduce(t *testing.T) {
	r := dedupe.NewResult[string, int]()
	var calls int32
	start := make(chan struct{})

	produce := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Dedupe("k", produce)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond) // let every goroutine reach Dedupe
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, calls)
	for _, v := range results {
		require.Equal(t, 42, v)
	}
}

func TestDedupeReusesResultAfterPriorCallCompletes(t *testing.T) {
	r := dedupe.NewResult[string, int]()
	var calls int32
	produce := func() (int, error) {
		n := atomic.AddInt32(&calls, 1)
		return int(n), nil
	}

	v1, err := r.Dedupe("k", produce)
	require.NoError(t, err)
	v2, err := r.Dedupe("k", produce)
	require.NoError(t, err)

	require.Equal(t, 1, v1)
	require.Equal(t, 1, v2)
}

func TestDedupePropagatesError(t *testing.T) {
	r := dedupe.NewResult[string, int]()
	boom := errors.New("boom")

	_, err := r.Dedupe("k", func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
}
