package blocksort

import (
	"context"

	"github.com/tamirms/blocksort/internal/blockio"
)

// takeFirst reports whether the first run's current element should be
// emitted before the second run's. The stable variant uses <= so equal
// keys keep their source order; the unstable variant uses < and lets the
// second run win ties.
func (w *worker) takeFirst(a, b uint64) bool {
	if w.s.cfg.stable {
		return a <= b
	}
	return a < b
}

// mergeRuns merges the sorted runs [aLo, aHi) and [bLo, bHi) of the
// buffer at srcBase into the buffer at dstBase starting at offset out.
// The first run must precede the second in array order. Both runs must be
// non-empty; callers route empty sides through copyRange instead.
//
// Merged output accumulates in the cache region and is flushed to bulk
// memory whenever it fills. Once either run drains, the other run's tail
// needs no further comparisons and is copied verbatim from the address
// the cursor resolves via locate.
func (w *worker) mergeRuns(srcBase, dstBase blockio.BulkAddr, aLo, aHi, bLo, bHi, out uint64) {
	aRem := aHi - aLo
	bRem := bHi - bLo

	w.ra.open(srcBase+blockio.BulkAddr(aLo), srcBase+blockio.BulkAddr(aHi))
	w.rb.open(srcBase+blockio.BulkAddr(bLo), srcBase+blockio.BulkAddr(bHi))

	cache := w.bufs.cache
	fill := 0
	flush := func() {
		w.writeExact(dstBase+blockio.BulkAddr(out), cache[:fill])
		out += uint64(fill)
		fill = 0
	}

	for aRem > 0 && bRem > 0 {
		av, bv := w.ra.cur(), w.rb.cur()
		if w.takeFirst(av, bv) {
			cache[fill] = av
			aRem--
			// never advance an exhausted cursor
			if aRem > 0 {
				w.ra.advance()
			}
		} else {
			cache[fill] = bv
			bRem--
			if bRem > 0 {
				w.rb.advance()
			}
		}
		fill++
		if fill == len(cache) {
			flush()
		}
	}
	flush()

	if aRem > 0 {
		w.copyRange(w.ra.locate(), dstBase+blockio.BulkAddr(out), aRem)
	} else if bRem > 0 {
		w.copyRange(w.rb.locate(), dstBase+blockio.BulkAddr(out), bRem)
	}
}

// mergePass merges adjacent run pairs of length runLen across [lo, hi),
// reading from the buffer at srcBase and writing to the buffer at
// dstBase. A trailing run with no partner is copied verbatim; its length
// need not match runLen.
func (w *worker) mergePass(srcBase, dstBase blockio.BulkAddr, lo, hi, runLen uint64) {
	for base := lo; base < hi; base += 2 * runLen {
		mid := base + runLen
		end := base + 2*runLen
		if end > hi {
			end = hi
		}
		if mid >= hi {
			w.copyRange(srcBase+blockio.BulkAddr(base), dstBase+blockio.BulkAddr(base), end-base)
			continue
		}
		w.mergeRuns(srcBase, dstBase, base, mid, mid, end, base)
	}
}

// sortPartition sorts this worker's partition with an external merge
// sort: run formation followed by doubling ping-pong merge passes. The
// pass count is computed up front and run formation targets the buffer
// that makes the final pass land in the primary one, so every worker
// enters the parallel phase with its sorted partition in the same buffer.
func (w *worker) sortPartition(ctx context.Context) error {
	lo, hi := w.s.partStart[w.id], w.s.partEnd[w.id]
	if lo >= hi {
		return nil
	}
	n := hi - lo
	block := w.s.cfg.blockElems

	passes := 0
	for r := block; r < n; r <<= 1 {
		passes++
	}

	cur := w.s.primary
	if passes%2 == 1 {
		cur = w.s.aux
	}
	w.formRuns(w.s.primary, cur, lo, hi)

	for runLen := block; runLen < n; runLen <<= 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := w.s.other(cur)
		w.mergePass(cur, next, lo, hi, runLen)
		cur = next
	}
	return nil
}
