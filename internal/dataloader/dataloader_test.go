package dataloader_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tailcall-oss/gateway/internal/dataloader"
)

func TestLoaderBatchesCallsWithinDelayWindow(t *testing.T) {
	var batchCalls int32
	loader := dataloader.New[string, int](20*time.Millisecond, 0, func(_ context.Context, keys []string) (map[string]int, map[string]error) {
		atomic.AddInt32(&batchCalls, 1)
		values := make(map[string]int, len(keys))
		for i, k := range keys {
			values[k] = i
		}
		return values, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 3)
	for i, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			v, err := loader.Load(context.Background(), key)
			require.NoError(t, err)
			results[i] = v
		}(i, key)
	}
	wg.Wait()

	require.EqualValues(t, 1, batchCalls)
}

func TestLoaderDispatchesEagerlyAtMaxSize(t *testing.T) {
	var batchCalls int32
	loader := dataloader.New[string, int](time.Hour, 2, func(_ context.Context, keys []string) (map[string]int, map[string]error) {
		atomic.AddInt32(&batchCalls, 1)
		values := make(map[string]int, len(keys))
		for _, k := range keys {
			values[k] = len(k)
		}
		return values, nil
	})

	var wg sync.WaitGroup
	for _, key := range []string{"a", "bb"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := loader.Load(context.Background(), key)
			require.NoError(t, err)
		}(key)
	}
	wg.Wait()

	require.EqualValues(t, 1, batchCalls)
}

func TestLoaderPropagatesPerKeyErrors(t *testing.T) {
	loader := dataloader.New[string, int](5*time.Millisecond, 0, func(_ context.Context, keys []string) (map[string]int, map[string]error) {
		errs := map[string]error{}
		for _, k := range keys {
			if k == "bad" {
				errs[k] = context.Canceled
			}
		}
		return nil, errs
	})

	_, err := loader.Load(context.Background(), "bad")
	require.ErrorIs(t, err, context.Canceled)
}
