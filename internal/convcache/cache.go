// ABOUTME: Thread-safe, size-bounded LRU memoization for unit conversions and formatting
// ABOUTME: Two independent families; single lookups are read-locked, batches run in one critical section

package convcache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/sestako/eunio-app-sub019/internal/metrics"
	"github.com/sestako/eunio-app-sub019/internal/units"
)

// DefaultMaxSize is the per-family capacity used when Config.MaxSize is zero.
const DefaultMaxSize = 1000

const (
	familyConversion = "conversion"
	familyFormat     = "format"
)

// InsertPolicy decides what the single-value path does when a family is full.
type InsertPolicy int

const (
	// SkipWhenFull leaves a full family untouched; only batches evict.
	SkipWhenFull InsertPolicy = iota
	// EvictWhenFull evicts the least recently used entry on every insert.
	EvictWhenFull
)

// ConvertFunc computes a conversion. It must be a pure function of its inputs.
type ConvertFunc func(value float64, from, to units.Unit, kind units.Kind) float64

// FormatFunc renders a value. It must be a pure function of its inputs.
type FormatFunc func(value float64, unit units.Unit, kind units.Kind) string

// Config sizes the cache.
type Config struct {
	MaxSize      int // per family
	InsertPolicy InsertPolicy
}

// Option customises a Cache.
type Option func(*Cache)

// WithConverter replaces the conversion function.
func WithConverter(fn ConvertFunc) Option {
	return func(c *Cache) { c.convert = fn }
}

// WithFormatter replaces the formatting function.
func WithFormatter(fn FormatFunc) Option {
	return func(c *Cache) { c.format = fn }
}

// WithLogger sets the logger used for stat snapshots.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// key identifies one cached computation. The value is stored as its bit
// pattern so NaN inputs and signed zeros get distinct, stable keys.
type key struct {
	bits uint64
	from units.Unit
	to   units.Unit
	kind units.Kind
}

func (k key) String() string {
	return fmt.Sprintf("%x|%s|%s|%s", k.bits, k.from, k.to, k.kind)
}

// entry holds a value and its recency stamp. The stamp is atomic so hits can
// refresh it while holding only the read lock.
type entry[V any] struct {
	value V
	stamp atomic.Uint64
}

type family[V any] struct {
	name    string
	entries map[key]*entry[V]
}

func newFamily[V any](name string) *family[V] {
	return &family[V]{name: name, entries: make(map[key]*entry[V])}
}

// Cache memoizes conversions and formatted strings. The two families have
// separate key spaces and separate capacity budgets.
//
// A single Cache is meant to be shared process-wide.
type Cache struct {
	mu      sync.RWMutex
	conv    *family[float64]
	fmts    *family[string]
	maxSize int
	policy  InsertPolicy

	clock  atomic.Uint64 // logical time for recency stamps
	hits   atomic.Uint64
	misses atomic.Uint64

	convert ConvertFunc
	format  FormatFunc
	flights singleflight.Group
	logger  *slog.Logger
}

// New creates a cache. Conversions default to units.Convert and formatting to
// units.Format.
func New(cfg Config, opts ...Option) *Cache {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		conv:    newFamily[float64](familyConversion),
		fmts:    newFamily[string](familyFormat),
		maxSize: maxSize,
		policy:  cfg.InsertPolicy,
		convert: units.Convert,
		format:  units.Format,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "convcache")
	return c
}

func convKey(value float64, from, to units.Unit, kind units.Kind) key {
	return key{bits: math.Float64bits(value), from: from, to: to, kind: kind}
}

func fmtKey(value float64, unit units.Unit, kind units.Kind) key {
	return key{bits: math.Float64bits(value), from: unit, kind: kind}
}

// Convert returns the cached conversion, computing and caching it on a miss.
// Concurrent misses on the same key share one computation.
func (c *Cache) Convert(value float64, from, to units.Unit, kind units.Kind) float64 {
	k := convKey(value, from, to, kind)
	if v, ok := lookup(c, c.conv, k); ok {
		return v
	}

	res, _, _ := c.flights.Do("c|"+k.String(), func() (any, error) {
		if v, ok := peek(c, c.conv, k); ok {
			return v, nil
		}
		v := c.convert(value, from, to, kind)
		c.recordMiss(familyConversion)
		insertSingle(c, c.conv, k, v)
		return v, nil
	})
	return res.(float64)
}

// Format returns the cached formatted string, computing and caching it on a miss.
func (c *Cache) Format(value float64, unit units.Unit, kind units.Kind) string {
	k := fmtKey(value, unit, kind)
	if v, ok := lookup(c, c.fmts, k); ok {
		return v
	}

	res, _, _ := c.flights.Do("f|"+k.String(), func() (any, error) {
		if v, ok := peek(c, c.fmts, k); ok {
			return v, nil
		}
		v := c.format(value, unit, kind)
		c.recordMiss(familyFormat)
		insertSingle(c, c.fmts, k, v)
		return v, nil
	})
	return res.(string)
}

// ConvertBatch converts every value under one critical section. If ctx is
// cancelled before the batch commits, the cache is left exactly as it was
// and ctx.Err() is returned.
func (c *Cache) ConvertBatch(ctx context.Context, values []float64, from, to units.Unit, kind units.Kind) ([]float64, error) {
	return runBatch(ctx, c, c.conv, values, func(v float64) float64 {
		return c.convert(v, from, to, kind)
	}, func(v float64) key {
		return convKey(v, from, to, kind)
	})
}

// FormatBatch formats every value under one critical section, with the same
// all-or-nothing behaviour as ConvertBatch.
func (c *Cache) FormatBatch(ctx context.Context, values []float64, unit units.Unit, kind units.Kind) ([]string, error) {
	return runBatch(ctx, c, c.fmts, values, func(v float64) string {
		return c.format(v, unit, kind)
	}, func(v float64) key {
		return fmtKey(v, unit, kind)
	})
}

// Clear drops every entry in both families and resets recency tracking.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conv.entries = make(map[key]*entry[float64])
	c.fmts.entries = make(map[key]*entry[string])
	c.clock.Store(0)
	metrics.CacheEntries.WithLabelValues(familyConversion).Set(0)
	metrics.CacheEntries.WithLabelValues(familyFormat).Set(0)
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	ConversionCount int
	FormatCount     int
	MaxCacheSize    int
	Utilization     float64 // total entries / (2 * MaxCacheSize)
	Hits            uint64
	Misses          uint64
}

// Stats returns a read-only snapshot.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	convCount := len(c.conv.entries)
	fmtCount := len(c.fmts.entries)
	c.mu.RUnlock()

	return Stats{
		ConversionCount: convCount,
		FormatCount:     fmtCount,
		MaxCacheSize:    c.maxSize,
		Utilization:     float64(convCount+fmtCount) / float64(2*c.maxSize),
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
	}
}

// LogStats writes a stats snapshot to the cache's logger.
func (c *Cache) LogStats() {
	s := c.Stats()
	c.logger.Info("conversion cache stats",
		"conversions", s.ConversionCount,
		"formats", s.FormatCount,
		"max_size", s.MaxCacheSize,
		"utilization", s.Utilization,
		"hits", s.Hits,
		"misses", s.Misses,
	)
}

func (c *Cache) tick() uint64 {
	return c.clock.Add(1)
}

func (c *Cache) recordMiss(name string) {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues(name, "miss").Inc()
}

// lookup is the read-locked fast path. A hit refreshes recency atomically.
func lookup[V any](c *Cache, f *family[V], k key) (V, bool) {
	c.mu.RLock()
	e, ok := f.entries[k]
	if ok {
		e.stamp.Store(c.tick())
	}
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues(f.name, "hit").Inc()
	return e.value, true
}

// peek checks for a key without touching stats; used to re-check inside a flight.
func peek[V any](c *Cache, f *family[V], k key) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := f.entries[k]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// insertSingle stores a freshly computed value from the single-value path.
// Under SkipWhenFull a full family is left alone.
func insertSingle[V any](c *Cache, f *family[V], k key, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := f.entries[k]; ok {
		e.stamp.Store(c.tick())
		return
	}
	if len(f.entries) >= c.maxSize {
		if c.policy != EvictWhenFull {
			return
		}
		evictLocked(c, f)
	}
	insertLocked(c, f, k, v)
}

// insertLocked adds an entry. Must be called with mu held.
func insertLocked[V any](c *Cache, f *family[V], k key, v V) {
	e := &entry[V]{value: v}
	e.stamp.Store(c.tick())
	f.entries[k] = e
	metrics.CacheEntries.WithLabelValues(f.name).Set(float64(len(f.entries)))
}

// evictLocked removes the least recently used entry. Must be called with mu
// held for writing. It scans the family, so it stays off the read path.
func evictLocked[V any](c *Cache, f *family[V]) {
	var (
		victim key
		oldest uint64 = math.MaxUint64
		found  bool
	)
	for k, e := range f.entries {
		if s := e.stamp.Load(); s < oldest {
			oldest = s
			victim = k
			found = true
		}
	}
	if !found {
		return
	}
	delete(f.entries, victim)
	metrics.CacheEvictions.WithLabelValues(f.name).Inc()
}

// runBatch computes a whole batch under the write lock, staging hits and
// inserts, and commits only if ctx is still live.
func runBatch[V any](
	ctx context.Context,
	c *Cache,
	f *family[V],
	values []float64,
	compute func(float64) V,
	keyOf func(float64) key,
) ([]V, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]V, len(values))
	staged := make(map[key]V)
	var order []key
	var touched []*entry[V]
	var hits, misses uint64

	for i, value := range values {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		k := keyOf(value)
		if e, ok := f.entries[k]; ok {
			results[i] = e.value
			touched = append(touched, e)
			hits++
			continue
		}
		if v, ok := staged[k]; ok {
			results[i] = v
			hits++
			continue
		}

		v := compute(value)
		staged[k] = v
		order = append(order, k)
		results[i] = v
		misses++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, e := range touched {
		e.stamp.Store(c.tick())
	}
	for _, k := range order {
		if len(f.entries) >= c.maxSize {
			evictLocked(c, f)
		}
		insertLocked(c, f, k, staged[k])
	}

	c.hits.Add(hits)
	c.misses.Add(misses)
	metrics.CacheLookups.WithLabelValues(f.name, "hit").Add(float64(hits))
	metrics.CacheLookups.WithLabelValues(f.name, "miss").Add(float64(misses))
	return results, nil
}
