package blocksort

import "slices"

const (
	// defaultBlockElems is the cache region capacity (and the run
	// formation block size) in elements: 32 KiB.
	defaultBlockElems = 1 << 12

	// defaultWindowElems is the streaming cursor window size in
	// elements: 8 KiB per cursor, two cursors per worker.
	defaultWindowElems = 1 << 10
)

// SortOption is a functional option for configuring a Sorter.
type SortOption func(*sortConfig)

type sortConfig struct {
	workers     int
	blockElems  uint64
	windowElems uint64
	reader      ReaderID
	stable      bool
	fileBacked  bool
	dir         string
	sortSmall   func([]uint64)
}

func defaultSortConfig() *sortConfig {
	return &sortConfig{
		workers:     1,
		blockElems:  defaultBlockElems,
		windowElems: defaultWindowElems,
		reader:      ReaderBlock,
		sortSmall:   slices.Sort[[]uint64],
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) SortOption {
	return func(c *sortConfig) {
		c.workers = n
	}
}

// WithBlockElems sets the cache region capacity in elements. This is also
// the run formation block size, so it bounds the size of the initial
// sorted runs. Must be a multiple of the alignment granularity.
func WithBlockElems(n uint64) SortOption {
	return func(c *sortConfig) {
		c.blockElems = n
	}
}

// WithWindowElems sets the streaming cursor window size in elements.
// Must be an aligned value no larger than the maximum single transfer.
func WithWindowElems(n uint64) SortOption {
	return func(c *sortConfig) {
		c.windowElems = n
	}
}

// WithReader selects the streaming cursor refill backend. The backends
// share one contract and differ only in constant factors; the choice is a
// tuning knob, not a behavioral variant.
func WithReader(id ReaderID) SortOption {
	return func(c *sortConfig) {
		c.reader = id
	}
}

// WithStable selects the stable merge variant: equal keys keep their
// source order through every merge step, at the cost of slightly stricter
// comparisons and split-point searches.
func WithStable() SortOption {
	return func(c *sortConfig) {
		c.stable = true
	}
}

// WithFileBacked places the bulk buffers in a memory-mapped temp file
// created in dir (os.TempDir if empty) instead of an in-memory arena.
// The file is pre-allocated to its full size and removed on Close.
// The directory must be on a local filesystem; tmpfs works but stores
// data in RAM/swap, defeating the purpose at scale.
func WithFileBacked(dir string) SortOption {
	return func(c *sortConfig) {
		c.fileBacked = true
		c.dir = dir
	}
}

// WithSortSmall supplies the small-array sort used by run formation on
// in-fast-memory blocks. The function must sort its argument in place.
// It never sees a slice larger than the cache region. Defaults to
// slices.Sort.
func WithSortSmall(fn func([]uint64)) SortOption {
	return func(c *sortConfig) {
		c.sortSmall = fn
	}
}
