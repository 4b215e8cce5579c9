// Package convcache memoizes unit conversions and formatted measurement
// strings behind a size-bounded LRU cache shared by the whole process.
//
// # Families
//
// Conversions (value, from, to, kind) and formats (value, unit, kind) live in
// separate families with separate capacity budgets. Keys use the exact bit
// pattern of the value, so identical inputs always hit identical entries.
//
// # Concurrency
//
// Hits take only the read lock and refresh recency with an atomic stamp.
// Concurrent misses on one key are collapsed with singleflight so the
// underlying function runs once. Batches hold the write lock for the whole
// batch and commit only if their context is still live.
//
// # Eviction
//
// Under the default SkipWhenFull policy a full family ignores new single
// inserts; batches evict the least recently used entry to make room.
// EvictWhenFull applies LRU eviction to single inserts as well.
package convcache
