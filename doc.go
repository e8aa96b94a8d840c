// Package blocksort implements an out-of-core parallel merge sort for
// fixed-width integer keys with bounded fast-memory usage.
//
// Data lives in a bulk, block-addressed memory tier (an in-memory arena or
// a memory-mapped temp file) and is only moved through aligned block
// transfers into small per-worker buffer sets. Each worker forms sorted
// runs over its partition, merges them with doubling ping-pong passes, and
// the independently sorted partitions are then combined by a tree-structured
// protocol that exchanges split points in O(log W) rounds instead of one
// worker performing the final merge alone.
//
// # Basic Usage
//
//	sorter, err := blocksort.New(uint64(len(data)), blocksort.WithWorkers(8))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sorter.Close()
//
//	if err := sorter.Load(data); err != nil {
//	    log.Fatal(err)
//	}
//	res, err := sorter.Sort(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// res reports which bulk buffer holds the sorted output.
//	if err := sorter.Result(data); err != nil {
//	    log.Fatal(err)
//	}
//
// For one-shot in-memory use, SortSlice wraps the Load/Sort/Result cycle:
//
//	if err := blocksort.SortSlice(ctx, data, blocksort.WithWorkers(8)); err != nil {
//	    log.Fatal(err)
//	}
//
// # Package Structure
//
//   - Public API: sorter.go (New, Load, Sort, Result), options.go (With* functions)
//   - Streaming cursors: cursor.go (ReaderID dispatch, window refill backends)
//   - Per-worker sort: runs.go (run formation), merge.go (ping-pong merge passes)
//   - Cross-worker merge: schedule.go (round/cluster arithmetic), parallel.go
//   - Verification: verify.go (IsSorted, multiset Fingerprint)
//   - Bulk tier: internal/blockio (aligned block transfers, mmap backend)
package blocksort
