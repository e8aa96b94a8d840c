package blocksort

import (
	intbits "github.com/tamirms/blocksort/internal/bits"
	"github.com/tamirms/blocksort/internal/blockio"
)

// bufSet is one worker's private fast-memory allocation: a cache region
// used as merge accumulator and copy staging area, and one window per
// streaming cursor. Allocated lazily on first use, reused unmodified by
// subsequent sorts, never shared between workers.
type bufSet struct {
	cache []uint64
	winA  []uint64
	winB  []uint64
}

// worker owns one partition of the input and one buffer set. During the
// sequential phase it runs with no shared state at all; during the
// parallel merge it exchanges typed messages on the channels below with
// exactly one named partner at a time.
type worker struct {
	id int
	s  *Sorter

	bufs   bufSet
	ra, rb streamReader

	// Protocol channels, recreated for every Sort call. tasks and done
	// are read by this worker; their senders vary by round but every
	// send is ordered after the previous round's drain by the cascade
	// itself. ready is written only by this worker, at most once per
	// sort in its ready round, and read by the cluster root inheriting
	// its run; keeping the single writer on the sender side is what
	// stops a later round's bounds from overtaking an earlier round's.
	tasks chan mergeTask
	ready chan readyMsg
	done  chan doneMsg
}

// ensure allocates the worker's buffer set and cursors on first use.
func (w *worker) ensure() error {
	if w.bufs.cache != nil {
		return nil
	}
	cfg := w.s.cfg
	w.bufs.cache = make([]uint64, cfg.blockElems)
	w.bufs.winA = make([]uint64, cfg.windowElems)
	w.bufs.winB = make([]uint64, cfg.windowElems)

	ra, err := newStreamReader(cfg.reader, w.s.store, w.bufs.winA)
	if err != nil {
		return err
	}
	rb, err := newStreamReader(cfg.reader, w.s.store, w.bufs.winB)
	if err != nil {
		return err
	}
	w.ra, w.rb = ra, rb
	return nil
}

// writeExact writes src to bulk memory at dst with no overspill: an
// element-wise head up to the next alignment boundary, maximal aligned
// block transfers, and an element-wise tail. Exactness matters in the
// parallel rounds, where the adjacent output range belongs to a sibling
// worker writing concurrently.
func (w *worker) writeExact(dst blockio.BulkAddr, src []uint64) {
	st := w.s.store
	i := 0
	for i < len(src) && !intbits.IsAligned(uint64(dst), blockio.AlignElems) {
		st.WriteElem(dst, src[i])
		dst++
		i++
	}
	for len(src)-i >= blockio.AlignElems {
		n := intbits.AlignDown(uint64(len(src)-i), blockio.AlignElems)
		if n > blockio.MaxTransferElems {
			n = blockio.MaxTransferElems
		}
		st.Write(dst, src[i:i+int(n)])
		dst += blockio.BulkAddr(n)
		i += int(n)
	}
	for i < len(src) {
		st.WriteElem(dst, src[i])
		dst++
		i++
	}
}

// readExact fills dst from bulk memory at src. Same splitting as
// writeExact.
func (w *worker) readExact(src blockio.BulkAddr, dst []uint64) {
	st := w.s.store
	i := 0
	for i < len(dst) && !intbits.IsAligned(uint64(src), blockio.AlignElems) {
		dst[i] = st.ReadElem(src)
		src++
		i++
	}
	for len(dst)-i >= blockio.AlignElems {
		n := intbits.AlignDown(uint64(len(dst)-i), blockio.AlignElems)
		if n > blockio.MaxTransferElems {
			n = blockio.MaxTransferElems
		}
		st.Read(src, dst[i:i+int(n)])
		src += blockio.BulkAddr(n)
		i += int(n)
	}
	for i < len(dst) {
		dst[i] = st.ReadElem(src)
		src++
		i++
	}
}

// copyRange copies count elements bulk-to-bulk, staged through the cache
// region. Used for runs whose elements need no comparisons: odd trailing
// runs, drained-run tails, and degenerate sub-ranges in the parallel
// rounds.
func (w *worker) copyRange(src, dst blockio.BulkAddr, count uint64) {
	cache := w.bufs.cache
	for count > 0 {
		n := uint64(len(cache))
		if count < n {
			n = count
		}
		w.readExact(src, cache[:n])
		w.writeExact(dst, cache[:n])
		src += blockio.BulkAddr(n)
		dst += blockio.BulkAddr(n)
		count -= n
	}
}

// lowerBound returns the first address in the sorted range [lo, hi) whose
// element is not less than pivot, or hi if none.
func (w *worker) lowerBound(lo, hi blockio.BulkAddr, pivot uint64) blockio.BulkAddr {
	st := w.s.store
	for lo < hi {
		mid := lo + (hi-lo)/2
		if st.ReadElem(mid) < pivot {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// upperBound returns the first address in the sorted range [lo, hi) whose
// element is greater than pivot, or hi if none.
func (w *worker) upperBound(lo, hi blockio.BulkAddr, pivot uint64) blockio.BulkAddr {
	st := w.s.store
	for lo < hi {
		mid := lo + (hi-lo)/2
		if st.ReadElem(mid) <= pivot {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
