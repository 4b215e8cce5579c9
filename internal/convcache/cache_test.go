// ABOUTME: Tests for the conversion cache
// ABOUTME: Covers single-flight misses, LRU eviction, batch cancellation and stats

package convcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sestako/eunio-app-sub019/internal/units"
)

type countingConverter struct {
	calls atomic.Int64
}

func (cc *countingConverter) convert(v float64, from, to units.Unit, kind units.Kind) float64 {
	cc.calls.Add(1)
	return units.Convert(v, from, to, kind)
}

func TestCache_ConcurrentMissComputesOnce(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 100}, WithConverter(cc.convert))

	const workers = 50
	results := make([]float64, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = cache.Convert(100, units.Kilogram, units.Pound, units.Weight)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), cc.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.InDelta(t, 220.462262, results[0], 1e-6)
	assert.Equal(t, 1, cache.Stats().ConversionCount)
}

func TestCache_HitDoesNotRecompute(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 10}, WithConverter(cc.convert))

	first := cache.Convert(37, units.Celsius, units.Fahrenheit, units.Temperature)
	second := cache.Convert(37, units.Celsius, units.Fahrenheit, units.Temperature)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), cc.calls.Load())

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCache_SkipWhenFull(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 2}, WithConverter(cc.convert))

	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(2, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(3, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, 2, cache.Stats().ConversionCount)

	// 3 was never stored, so asking again recomputes it.
	cache.Convert(3, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, int64(4), cc.calls.Load())

	// Existing entries are untouched.
	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, int64(4), cc.calls.Load())
}

func TestCache_EvictWhenFullDropsLeastRecentlyUsed(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 3, InsertPolicy: EvictWhenFull}, WithConverter(cc.convert))

	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(2, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(3, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(1, units.Kilogram, units.Pound, units.Weight) // refresh 1

	cache.Convert(4, units.Kilogram, units.Pound, units.Weight) // evicts 2
	assert.Equal(t, 3, cache.Stats().ConversionCount)
	assert.Equal(t, int64(4), cc.calls.Load())

	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, int64(4), cc.calls.Load(), "1 should still be cached")

	cache.Convert(2, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, int64(5), cc.calls.Load(), "2 should have been evicted")
}

func TestCache_BatchEvictsOnOverflow(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 3}, WithConverter(cc.convert))

	out, err := cache.ConvertBatch(t.Context(), []float64{1, 2, 3, 4}, units.Kilogram, units.Pound, units.Weight)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.InDelta(t, units.Convert(4, units.Kilogram, units.Pound, units.Weight), out[3], 1e-12)
	assert.Equal(t, 3, cache.Stats().ConversionCount)

	// The oldest insert was evicted to make room for 4.
	calls := cc.calls.Load()
	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	assert.Equal(t, calls+1, cc.calls.Load())
}

func TestCache_BatchDuplicatesComputedOnce(t *testing.T) {
	cc := &countingConverter{}
	cache := New(Config{MaxSize: 10}, WithConverter(cc.convert))

	out, err := cache.ConvertBatch(t.Context(), []float64{5, 5, 5}, units.Kilogram, units.Pound, units.Weight)
	require.NoError(t, err)
	assert.Equal(t, out[0], out[2])
	assert.Equal(t, int64(1), cc.calls.Load())
}

func TestCache_BatchCancelledBeforeStart(t *testing.T) {
	cache := New(Config{MaxSize: 10})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	out, err := cache.ConvertBatch(ctx, []float64{1, 2}, units.Kilogram, units.Pound, units.Weight)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Equal(t, 0, cache.Stats().ConversionCount)
}

func TestCache_BatchCancelledMidwayLeavesCacheUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	cache := New(Config{MaxSize: 10}, WithConverter(func(v float64, from, to units.Unit, kind units.Kind) float64 {
		cancel()
		return units.Convert(v, from, to, kind)
	}))

	_, err := cache.ConvertBatch(ctx, []float64{1, 2, 3}, units.Kilogram, units.Pound, units.Weight)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cache.Stats().ConversionCount)
	assert.Equal(t, uint64(0), cache.Stats().Misses)
}

func TestCache_FormatFamilyIsSeparate(t *testing.T) {
	var formats atomic.Int64
	cache := New(Config{MaxSize: 10}, WithFormatter(func(v float64, u units.Unit, k units.Kind) string {
		formats.Add(1)
		return units.Format(v, u, k)
	}))

	assert.Equal(t, "68.0 kg", cache.Format(68, units.Kilogram, units.Weight))
	assert.Equal(t, "68.0 kg", cache.Format(68, units.Kilogram, units.Weight))
	assert.Equal(t, int64(1), formats.Load())

	out, err := cache.FormatBatch(t.Context(), []float64{68, 70}, units.Kilogram, units.Weight)
	require.NoError(t, err)
	assert.Equal(t, []string{"68.0 kg", "70.0 kg"}, out)
	assert.Equal(t, int64(2), formats.Load())

	stats := cache.Stats()
	assert.Equal(t, 2, stats.FormatCount)
	assert.Equal(t, 0, stats.ConversionCount)
}

func TestCache_StatsAndClear(t *testing.T) {
	cache := New(Config{MaxSize: 10})

	cache.Convert(1, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(2, units.Kilogram, units.Pound, units.Weight)
	cache.Convert(3, units.Kilogram, units.Pound, units.Weight)
	cache.Format(1, units.Kilogram, units.Weight)
	cache.Format(2, units.Kilogram, units.Weight)

	stats := cache.Stats()
	assert.Equal(t, 3, stats.ConversionCount)
	assert.Equal(t, 2, stats.FormatCount)
	assert.Equal(t, 10, stats.MaxCacheSize)
	assert.InDelta(t, 0.25, stats.Utilization, 1e-9)

	cache.Clear()
	stats = cache.Stats()
	assert.Equal(t, 0, stats.ConversionCount)
	assert.Equal(t, 0, stats.FormatCount)
	assert.Zero(t, stats.Utilization)
}

func TestCache_DefaultMaxSize(t *testing.T) {
	cache := New(Config{})
	assert.Equal(t, DefaultMaxSize, cache.Stats().MaxCacheSize)
}
