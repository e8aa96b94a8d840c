package blocksort

import "github.com/tamirms/blocksort/internal/blockio"

// formRuns splits [lo, hi) of the buffer at srcBase into blocks of cache
// capacity, pulls each into fast memory, sorts it with the configured
// small-array sort, and writes it back to the buffer at dstBase.
//
// Writing to the other buffer is how the merge phase presets its flip
// parity: when the pass count is odd, runs are formed into the auxiliary
// buffer so the final pass lands the sorted partition in the primary one.
//
// Post-condition: [lo, hi) of dstBase is exactly covered by disjoint
// sorted runs of block length, plus at most one shorter run trailing at
// the high end.
func (w *worker) formRuns(srcBase, dstBase blockio.BulkAddr, lo, hi uint64) {
	block := uint64(len(w.bufs.cache))
	for base := lo; base < hi; base += block {
		end := base + block
		if end > hi {
			end = hi
		}
		chunk := w.bufs.cache[:end-base]
		w.readExact(srcBase+blockio.BulkAddr(base), chunk)
		w.s.cfg.sortSmall(chunk)
		w.writeExact(dstBase+blockio.BulkAddr(base), chunk)
	}
}
