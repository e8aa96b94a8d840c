package blocksort

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	blockerrors "github.com/tamirms/blocksort/errors"
	intbits "github.com/tamirms/blocksort/internal/bits"
	"github.com/tamirms/blocksort/internal/blockio"
)

// sentinel fills the dummy padding past each buffer's logical end, so
// rounded-up tail transfers never touch uninitialized memory.
const sentinel = ^uint64(0)

// SortResult reports which bulk buffer holds the sorted output. The
// ping-pong passes alternate buffers, so the final location depends on
// the round count; the result type makes that explicit instead of
// leaving a flip flag for the caller to remember to check.
type SortResult uint8

const (
	// ResultInPrimary means the sorted output is in the primary buffer,
	// the one Load stages input into.
	ResultInPrimary SortResult = 0

	// ResultInAuxiliary means the sorted output is in the auxiliary
	// ping-pong buffer.
	ResultInAuxiliary SortResult = 1
)

// String returns the buffer name.
func (r SortResult) String() string {
	switch r {
	case ResultInPrimary:
		return "primary"
	case ResultInAuxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// Sorter sorts arrays of a fixed element count using bulk buffers
// allocated once at construction. A Sorter is reusable: Load, Sort and
// Result may be cycled any number of times. It is not safe for
// concurrent use; the parallelism lives inside Sort.
//
// Usage:
//
//	sorter, err := blocksort.New(uint64(len(data)), blocksort.WithWorkers(8))
//	if err != nil { return err }
//	defer sorter.Close()
//
//	if err := sorter.Load(data); err != nil { return err }
//	if _, err := sorter.Sort(ctx); err != nil { return err }
//	return sorter.Result(data)
type Sorter struct {
	cfg     *sortConfig
	store   *blockio.Store
	n       uint64
	padded  uint64
	primary blockio.BulkAddr
	aux     blockio.BulkAddr

	workers   []*worker
	partStart []uint64
	partEnd   []uint64
	gate      *barrier

	loaded bool
	sorted bool
	res    SortResult
	closed bool
}

// New creates a Sorter for arrays of exactly n elements. Both bulk
// buffers are allocated here, sized once, and reused across sorts; all
// sizing violations surface now, before any sort begins.
func New(n uint64, opts ...SortOption) (*Sorter, error) {
	cfg := defaultSortConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.workers < 1 {
		return nil, blockerrors.ErrWorkerCount
	}
	if cfg.blockElems == 0 || !intbits.IsAligned(cfg.blockElems, blockio.AlignElems) {
		return nil, blockerrors.ErrBlockSize
	}
	if cfg.windowElems == 0 || cfg.windowElems > blockio.MaxTransferElems ||
		!intbits.IsAligned(cfg.windowElems, blockio.AlignElems) {
		return nil, blockerrors.ErrWindowSize
	}
	if cfg.reader != ReaderBlock && cfg.reader != ReaderStrided {
		return nil, blockerrors.ErrBadReader
	}
	if cfg.sortSmall == nil {
		cfg.sortSmall = defaultSortConfig().sortSmall
	}

	// Each buffer carries padding past its logical end: one cursor
	// window so refills near the end stay in bounds, plus the alignment
	// slack for rounded-up transfers.
	padded := intbits.AlignUp(n, blockio.AlignElems) + cfg.windowElems + blockio.AlignElems

	var store *blockio.Store
	if cfg.fileBacked {
		var err error
		store, err = blockio.NewFile(cfg.dir, 2*padded)
		if err != nil {
			return nil, fmt.Errorf("allocate bulk store: %w", err)
		}
	} else {
		store = blockio.NewMem(2 * padded)
	}

	s := &Sorter{
		cfg:     cfg,
		store:   store,
		n:       n,
		padded:  padded,
		primary: 0,
		aux:     blockio.BulkAddr(padded),
	}
	for _, base := range []blockio.BulkAddr{s.primary, s.aux} {
		for off := n; off < padded; off++ {
			store.WriteElem(base+blockio.BulkAddr(off), sentinel)
		}
	}

	// Partition boundaries are aligned to the run formation block size so
	// every run boundary inside a partition stays transfer-aligned. Late
	// workers may end up with empty partitions; they still take part in
	// the merge protocol.
	wcount := cfg.workers
	var per uint64
	if n > 0 {
		per = intbits.AlignUp(intbits.CeilDiv(n, uint64(wcount)), cfg.blockElems)
	}
	s.workers = make([]*worker, wcount)
	s.partStart = make([]uint64, wcount)
	s.partEnd = make([]uint64, wcount)
	for i := 0; i < wcount; i++ {
		lo := uint64(i) * per
		if lo > n {
			lo = n
		}
		hi := lo + per
		if hi > n {
			hi = n
		}
		s.partStart[i] = lo
		s.partEnd[i] = hi
		s.workers[i] = &worker{id: i, s: s}
	}

	return s, nil
}

// other returns the ping-pong partner of a buffer base.
func (s *Sorter) other(base blockio.BulkAddr) blockio.BulkAddr {
	if base == s.primary {
		return s.aux
	}
	return s.primary
}

// roundBases returns the input and output buffer bases of protocol round
// r. The sequential phase lands every partition in the primary buffer,
// so odd rounds read primary and write auxiliary.
func (s *Sorter) roundBases(r int) (in, out blockio.BulkAddr) {
	if r%2 == 1 {
		return s.primary, s.aux
	}
	return s.aux, s.primary
}

// clusterEnd returns the end offset of the round-r cluster rooted at
// root, clipped to the worker count.
func (s *Sorter) clusterEnd(root, round int) uint64 {
	last := root + 1<<round
	if last > len(s.workers) {
		last = len(s.workers)
	}
	return s.partEnd[last-1]
}

// clusterSize returns the member count of the round-r cluster rooted at
// root, clipped to the worker count.
func (s *Sorter) clusterSize(root, round int) int {
	end := root + 1<<round
	if end > len(s.workers) {
		end = len(s.workers)
	}
	return end - root
}

// Load stages input into the primary bulk buffer. len(data) must equal
// the element count the Sorter was constructed with.
func (s *Sorter) Load(data []uint64) error {
	if s.closed {
		return blockerrors.ErrSorterClosed
	}
	if uint64(len(data)) != s.n {
		return fmt.Errorf("%w: have %d, want %d", blockerrors.ErrLengthMismatch, len(data), s.n)
	}

	var off uint64
	for off < s.n {
		chunk := intbits.AlignDown(s.n-off, blockio.AlignElems)
		if chunk > blockio.MaxTransferElems {
			chunk = blockio.MaxTransferElems
		}
		if chunk == 0 {
			s.store.WriteElem(s.primary+blockio.BulkAddr(off), data[off])
			off++
			continue
		}
		s.store.Write(s.primary+blockio.BulkAddr(off), data[off:off+chunk])
		off += chunk
	}

	s.loaded = true
	s.sorted = false
	return nil
}

// Sort runs the full pipeline: per-worker run formation and ping-pong
// merge passes, the global barrier, then the tree merge rounds. It
// returns which buffer holds the sorted output; Result reads it back.
//
// Sort consumes the loaded input. Call Load again before sorting again.
func (s *Sorter) Sort(ctx context.Context) (SortResult, error) {
	if s.closed {
		return 0, blockerrors.ErrSorterClosed
	}
	if !s.loaded {
		return 0, blockerrors.ErrNotLoaded
	}
	s.loaded = false

	if s.n <= 1 {
		s.sorted = true
		s.res = ResultInPrimary
		return s.res, nil
	}

	wcount := len(s.workers)
	for _, w := range s.workers {
		w.tasks = make(chan mergeTask, 1)
		w.ready = make(chan readyMsg, 1)
		w.done = make(chan doneMsg, 1)
	}
	s.gate = newBarrier(wcount)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		g.Go(func() error {
			return w.run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("parallel merge sort: %w", err)
	}

	if numRounds(wcount)%2 == 0 {
		s.res = ResultInPrimary
	} else {
		s.res = ResultInAuxiliary
	}
	s.sorted = true
	return s.res, nil
}

// Result copies the sorted output into dst, reading from whichever
// buffer Sort reported.
func (s *Sorter) Result(dst []uint64) error {
	if s.closed {
		return blockerrors.ErrSorterClosed
	}
	if !s.sorted {
		return blockerrors.ErrNotSorted
	}
	if uint64(len(dst)) != s.n {
		return fmt.Errorf("%w: have %d, want %d", blockerrors.ErrLengthMismatch, len(dst), s.n)
	}

	base := s.primary
	if s.res == ResultInAuxiliary {
		base = s.aux
	}
	var off uint64
	for off < s.n {
		chunk := intbits.AlignDown(s.n-off, blockio.AlignElems)
		if chunk > blockio.MaxTransferElems {
			chunk = blockio.MaxTransferElems
		}
		if chunk == 0 {
			dst[off] = s.store.ReadElem(base + blockio.BulkAddr(off))
			off++
			continue
		}
		s.store.Read(base+blockio.BulkAddr(off), dst[off:off+chunk])
		off += chunk
	}
	return nil
}

// Close releases the bulk store. Idempotent.
func (s *Sorter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.store.Close()
}

// SortSlice sorts data in place through a one-shot Sorter. It is the
// convenience path for in-memory use and for harnesses.
func SortSlice(ctx context.Context, data []uint64, opts ...SortOption) error {
	s, err := New(uint64(len(data)), opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Load(data); err != nil {
		return err
	}
	if _, err := s.Sort(ctx); err != nil {
		return err
	}
	return s.Result(data)
}
