package blocksort

import (
	blockerrors "github.com/tamirms/blocksort/errors"
	intbits "github.com/tamirms/blocksort/internal/bits"
	"github.com/tamirms/blocksort/internal/blockio"
)

// ReaderID identifies the streaming cursor refill backend.
type ReaderID uint8

const (
	// ReaderBlock refills the whole cursor window with one maximal block
	// transfer.
	ReaderBlock ReaderID = 0

	// ReaderStrided refills the window in alignment-granularity strides.
	// Functionally identical to ReaderBlock; the shorter transfers trade
	// per-call overhead for a smaller copy working set.
	ReaderStrided ReaderID = 1
)

// String returns the backend name.
func (r ReaderID) String() string {
	switch r {
	case ReaderBlock:
		return "block"
	case ReaderStrided:
		return "strided"
	default:
		return "unknown"
	}
}

// streamReader is a cache-backed cursor over one sorted run in bulk
// memory. It exposes the current element and one-step advancement,
// refilling its fast-memory window through the block transfer layer
// exactly when the next element falls outside the cached range.
//
// The cursor does not police consumption: callers track the run's
// remaining element count and must not call advance once the run is
// exhausted. Refills are clipped to the run's aligned envelope so a
// cursor near the end of its run never reads a byte range some other
// worker may be writing.
type streamReader interface {
	// open positions the cursor on addr and fills the window. end is the
	// run's exclusive end address, bounding refills. addr does not need
	// to be aligned; the window is anchored at the enclosing alignment
	// boundary.
	open(addr, end blockio.BulkAddr)

	// cur returns the element under the cursor.
	cur() uint64

	// advance moves the cursor one element forward, refilling the window
	// if the next element is outside it.
	advance()

	// locate maps the cursor back to the bulk address it represents.
	// Merges use this to resume raw block copies once a run's tail no
	// longer needs element-wise comparison.
	locate() blockio.BulkAddr
}

// newStreamReader creates a cursor with the given backend over store,
// using win as its fast-memory window. len(win) must be an aligned value
// no larger than the maximum transfer size.
func newStreamReader(id ReaderID, store *blockio.Store, win []uint64) (streamReader, error) {
	switch id {
	case ReaderBlock:
		return &blockReader{store: store, win: win}, nil
	case ReaderStrided:
		return &stridedReader{store: store, win: win}, nil
	default:
		return nil, blockerrors.ErrBadReader
	}
}

// windowSpan returns the refill length for a window anchored at base:
// the full window, clipped to the run's aligned envelope.
func windowSpan(base, limit blockio.BulkAddr, win int) int {
	span := uint64(limit - base)
	if span > uint64(win) {
		span = uint64(win)
	}
	return int(span)
}

// blockReader refills its window with a single transfer.
type blockReader struct {
	store *blockio.Store
	win   []uint64
	base  blockio.BulkAddr
	limit blockio.BulkAddr
	pos   int
	n     int // valid window length
}

func (c *blockReader) open(addr, end blockio.BulkAddr) {
	c.base = blockio.BulkAddr(intbits.AlignDown(uint64(addr), blockio.AlignElems))
	c.limit = blockio.BulkAddr(intbits.AlignUp(uint64(end), blockio.AlignElems))
	c.pos = int(addr - c.base)
	c.n = windowSpan(c.base, c.limit, len(c.win))
	c.store.Read(c.base, c.win[:c.n])
}

func (c *blockReader) cur() uint64 {
	return c.win[c.pos]
}

func (c *blockReader) advance() {
	c.pos++
	if c.pos == c.n {
		c.base += blockio.BulkAddr(c.n)
		c.n = windowSpan(c.base, c.limit, len(c.win))
		c.store.Read(c.base, c.win[:c.n])
		c.pos = 0
	}
}

func (c *blockReader) locate() blockio.BulkAddr {
	return c.base + blockio.BulkAddr(c.pos)
}

// stridedReader refills its window in AlignElems strides.
type stridedReader struct {
	store *blockio.Store
	win   []uint64
	base  blockio.BulkAddr
	limit blockio.BulkAddr
	pos   int
	n     int
}

func (c *stridedReader) refill() {
	c.n = windowSpan(c.base, c.limit, len(c.win))
	for off := 0; off < c.n; off += blockio.AlignElems {
		c.store.Read(c.base+blockio.BulkAddr(off), c.win[off:off+blockio.AlignElems])
	}
}

func (c *stridedReader) open(addr, end blockio.BulkAddr) {
	c.base = blockio.BulkAddr(intbits.AlignDown(uint64(addr), blockio.AlignElems))
	c.limit = blockio.BulkAddr(intbits.AlignUp(uint64(end), blockio.AlignElems))
	c.pos = int(addr - c.base)
	c.refill()
}

func (c *stridedReader) cur() uint64 {
	return c.win[c.pos]
}

func (c *stridedReader) advance() {
	c.pos++
	if c.pos == c.n {
		c.base += blockio.BulkAddr(c.n)
		c.refill()
		c.pos = 0
	}
}

func (c *stridedReader) locate() blockio.BulkAddr {
	return c.base + blockio.BulkAddr(c.pos)
}
