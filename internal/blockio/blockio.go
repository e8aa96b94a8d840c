// Package blockio implements the block transfer layer: a bulk,
// block-addressed memory tier accessed only through aligned, size-bounded
// copies into ordinary fast-memory slices.
//
// Bulk addresses are element offsets carried in the opaque BulkAddr type so
// they cannot be conflated with fast-memory indices. The bulk tier is backed
// either by an in-memory arena or by a memory-mapped, pre-allocated temp
// file for datasets larger than RAM.
package blockio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// BulkAddr is an element offset into a bulk store. Bulk addresses are only
// dereferenced by the transfer methods on Store; converting one to a fast
// memory index is always a bug.
type BulkAddr uint64

const (
	// ElemBytes is the width of one element.
	ElemBytes = 8

	// AlignElems is the transfer alignment granularity in elements.
	// Block transfer addresses and lengths must be multiples of this.
	AlignElems = 8

	// MaxTransferElems is the largest single block transfer, in elements.
	MaxTransferElems = 1 << 12
)

// Store is a fixed-capacity bulk buffer arena. It is allocated once and
// never resized. A Store may be shared by many workers as long as no two
// of them address the same element range concurrently; the transfer
// methods themselves do no locking.
type Store struct {
	data []uint64
	mm   mmap.MMap
	file *os.File
	path string
}

// NewMem allocates an in-memory bulk store with capacity capElems.
func NewMem(capElems uint64) *Store {
	return &Store{data: make([]uint64, capElems)}
}

// NewFile allocates a file-backed bulk store with capacity capElems.
// The backing file is created in dir (os.TempDir if empty), pre-allocated
// to its full size to avoid SIGBUS on disk full, and memory-mapped.
func NewFile(dir string, capElems uint64) (*Store, error) {
	if capElems > math.MaxInt64/ElemBytes {
		return nil, fmt.Errorf("bulk store size overflow: %d elements", capElems)
	}
	size := int64(capElems) * ElemBytes

	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "blocksort-*.bulk")
	if err != nil {
		return nil, fmt.Errorf("create bulk store file: %w", err)
	}
	s := &Store{file: file, path: file.Name()}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full.
	if err := fallocateFile(file, size); err != nil {
		primaryErr := fmt.Errorf("pre-allocate bulk store: %w", err)
		return nil, errors.Join(primaryErr, s.Close())
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("mmap bulk store: %w", err)
		return nil, errors.Join(primaryErr, s.Close())
	}
	s.mm = mm
	s.data = castElems(mm)

	// Prefault pages for write so the first merge pass does not stall on
	// page faults. Best-effort, no-op where unsupported.
	prefaultRegion(mm)
	adviseWillNeed(mm)

	return s, nil
}

// castElems views a page-aligned byte region as elements.
func castElems(b []byte) []uint64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/ElemBytes)
}

// Len returns the store capacity in elements.
func (s *Store) Len() uint64 {
	return uint64(len(s.data))
}

// checkTransfer validates block transfer preconditions. Violations are
// programming errors, not runtime conditions: callers are required to
// round sizes up into buffer padding, so this never fires in a correct
// program.
func checkTransfer(addr BulkAddr, n int) {
	if uint64(addr)&(AlignElems-1) != 0 {
		panic(fmt.Sprintf("blockio: misaligned bulk address %d", addr))
	}
	if n&(AlignElems-1) != 0 {
		panic(fmt.Sprintf("blockio: misaligned transfer length %d", n))
	}
	if n > MaxTransferElems {
		panic(fmt.Sprintf("blockio: transfer length %d exceeds maximum %d", n, MaxTransferElems))
	}
}

// Read copies len(dst) elements from bulk memory starting at src into fast
// memory. src and len(dst) must be aligned and len(dst) must not exceed
// MaxTransferElems.
func (s *Store) Read(src BulkAddr, dst []uint64) {
	checkTransfer(src, len(dst))
	copy(dst, s.data[src:uint64(src)+uint64(len(dst))])
}

// Write copies src from fast memory into bulk memory starting at dst.
// Same alignment and size contract as Read.
func (s *Store) Write(dst BulkAddr, src []uint64) {
	checkTransfer(dst, len(src))
	copy(s.data[dst:uint64(dst)+uint64(len(src))], src)
}

// ReadElem loads a single element. This is the element-granular escape
// hatch used by binary searches and unaligned boundary fix-ups; bulk data
// movement goes through Read/Write.
func (s *Store) ReadElem(addr BulkAddr) uint64 {
	return s.data[addr]
}

// WriteElem stores a single element. See ReadElem.
func (s *Store) WriteElem(addr BulkAddr, v uint64) {
	s.data[addr] = v
}

// Close releases the store. Idempotent: safe to call multiple times and
// from error paths.
func (s *Store) Close() error {
	s.data = nil

	var errs []error
	if s.mm != nil {
		if err := s.mm.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap bulk store: %w", err))
		}
		s.mm = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bulk store: %w", err))
		}
		s.file = nil
	}
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove bulk store: %w", err))
		}
		s.path = ""
	}
	return errors.Join(errs...)
}
