package blocksort

import (
	"context"
	"sync/atomic"

	"github.com/tamirms/blocksort/internal/blockio"
)

// readyMsg hands a cluster's second-half run bounds from its sub-root to
// the cluster root. The bounds are buffer offsets; which buffer they live
// in is implied by the round parity, which all workers advance in step.
//
// The message travels on the sender's channel: a worker sends ready at
// most once per sort (in its ready round), and the root derives whose
// channel to drain from the schedule. Placing the channel on the receiver
// instead would give it one writer per round, and a later round's sender
// can be ready before an earlier round's sender when its cluster's
// partitions are tiny or empty.
type readyMsg struct {
	lo uint64
	hi uint64
}

// mergeTask assigns a pair of sorted sub-runs to a group of workers:
// merge [aLo, aHi) and [bLo, bHi) of the round's input buffer into the
// output buffer at offset out. The receiver is workers[first]; if count
// is greater than one it splits the task again and hands the upper part
// to the group's second half, walking down a binomial tree until every
// worker holds one leaf merge.
type mergeTask struct {
	aLo, aHi uint64
	bLo, bHi uint64
	out      uint64
	first    int
	count    int
	parent   int // worker to notify on completion, -1 for the cluster root
}

// doneMsg reports subtree completion back up the task tree, carrying the
// number of elements the subtree wrote.
type doneMsg struct {
	elems uint64
}

// barrier is the one global rendezvous crossed between the sequential
// phase and the first protocol round. Single use.
type barrier struct {
	remaining atomic.Int32
	release   chan struct{}
}

func newBarrier(n int) *barrier {
	b := &barrier{release: make(chan struct{})}
	b.remaining.Store(int32(n))
	return b
}

func (b *barrier) await(ctx context.Context) error {
	if b.remaining.Add(-1) == 0 {
		close(b.release)
		return nil
	}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendMsg and recvMsg are the handshake primitives: every cross-worker
// exchange goes through them so a worker blocked on a failed peer
// unwinds when the group context is cancelled.
func sendMsg[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recvMsg[T any](ctx context.Context, ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// run is one worker's whole lifetime: sequential sort of its own
// partition, the global barrier, then the protocol rounds.
func (w *worker) run(ctx context.Context) error {
	if err := w.ensure(); err != nil {
		return err
	}
	if err := w.sortPartition(ctx); err != nil {
		return err
	}
	if err := w.s.gate.await(ctx); err != nil {
		return err
	}

	rounds := numRounds(len(w.s.workers))
	for r := 1; r <= rounds; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.roundStep(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// roundStep executes one protocol round for this worker.
func (w *worker) roundStep(ctx context.Context, r int) error {
	wcount := len(w.s.workers)
	root := clusterRoot(w.id, r)
	sub, merges := subRoot(root, r, wcount)
	inBase, outBase := w.s.roundBases(r)

	if w.id == root {
		lo := w.s.partStart[root]
		hi := w.s.clusterEnd(root, r)
		if !merges {
			// No partner this round. Move the run to the output buffer
			// anyway so every worker's data sits in the same buffer when
			// the next round starts.
			w.copyRange(inBase+blockio.BulkAddr(lo), outBase+blockio.BulkAddr(lo), hi-lo)
			return nil
		}

		rdy, err := recvMsg(ctx, w.s.workers[sub].ready)
		if err != nil {
			return err
		}
		mid := w.s.partStart[sub]
		if rdy.lo != mid || rdy.hi != hi {
			panic("blocksort: protocol desync: inherited run bounds disagree with the schedule")
		}

		t := mergeTask{
			aLo: lo, aHi: mid,
			bLo: mid, bHi: hi,
			out:    lo,
			first:  root,
			count:  w.s.clusterSize(root, r),
			parent: -1,
		}
		total, err := w.execTask(ctx, inBase, outBase, t)
		if err != nil {
			return err
		}
		if total != hi-lo {
			panic("blocksort: protocol desync: merged length disagrees with cluster size")
		}
		return nil
	}

	if readyRound(w.id) == r {
		// This worker is its cluster's sub-root: its accumulated run is
		// the cluster's second half. Publish its bounds on this worker's
		// own ready channel, then join the task cascade.
		msg := readyMsg{lo: w.s.partStart[w.id], hi: w.s.clusterEnd(w.id, r-1)}
		if err := sendMsg(ctx, w.ready, msg); err != nil {
			return err
		}
	} else if !merges {
		// Cluster idles this round; only the root moves data.
		return nil
	}

	t, err := recvMsg(ctx, w.tasks)
	if err != nil {
		return err
	}
	_, err = w.execTask(ctx, inBase, outBase, t)
	return err
}

// execTask walks a task down the binomial tree: while the task spans more
// than one worker, split it at a pivot/cut point, hand the upper part to
// the group's second half, and keep the lower part. The final
// single-worker task is merged locally; completion then flows back up the
// same tree.
func (w *worker) execTask(ctx context.Context, inBase, outBase blockio.BulkAddr, t mergeTask) (uint64, error) {
	origParent := t.parent
	children := 0
	var pivots uint64

	for t.count > 1 {
		low, up, wrotePivot := w.splitTask(inBase, outBase, t)
		if wrotePivot {
			pivots++
		}
		if err := sendMsg(ctx, w.s.workers[up.first].tasks, up); err != nil {
			return 0, err
		}
		children++
		t = low
	}

	w.mergeLeaf(inBase, outBase, t)
	total := (t.aHi - t.aLo) + (t.bHi - t.bLo) + pivots

	for i := 0; i < children; i++ {
		d, err := recvMsg(ctx, w.done)
		if err != nil {
			return 0, err
		}
		total += d.elems
	}
	if origParent >= 0 {
		if err := sendMsg(ctx, w.s.workers[origParent].done, doneMsg{elems: total}); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// splitTask splits a two-run merge across a worker group without moving
// data. The pivot is the middle element of the longer run; a binary
// search over the shorter run finds the matching cut. Everything below
// the cut stays with the lower half of the group, everything at or above
// goes to the upper half, and the pivot itself is written straight to its
// final position - the only random-access single-element write in the
// system.
//
// In the stable variant the pivot is first backed up to the first of any
// equal run, and the cut search is chosen so that equal keys from the
// earlier run always precede equal keys from the later one.
func (w *worker) splitTask(inBase, outBase blockio.BulkAddr, t mergeTask) (low, up mergeTask, wrotePivot bool) {
	st := w.s.store
	stable := w.s.cfg.stable

	upperCount := t.count / 2
	lowerCount := t.count - upperCount

	low = t
	low.count = lowerCount
	up = mergeTask{first: t.first + lowerCount, count: upperCount, parent: w.id}

	aLen := t.aHi - t.aLo
	bLen := t.bHi - t.bLo
	if aLen == 0 && bLen == 0 {
		up.aLo, up.aHi = t.aHi, t.aHi
		up.bLo, up.bHi = t.bHi, t.bHi
		up.out = t.out
		return low, up, false
	}

	var pivot uint64
	var aCut, bCut uint64
	if aLen >= bLen {
		mi := t.aLo + aLen/2
		pivot = st.ReadElem(inBase + blockio.BulkAddr(mi))
		if stable {
			mi = uint64(w.lowerBound(inBase+blockio.BulkAddr(t.aLo), inBase+blockio.BulkAddr(mi), pivot) - inBase)
		}
		var c uint64
		if stable {
			// equal keys in the later run sort after the pivot
			c = uint64(w.lowerBound(inBase+blockio.BulkAddr(t.bLo), inBase+blockio.BulkAddr(t.bHi), pivot) - inBase)
		} else {
			c = uint64(w.upperBound(inBase+blockio.BulkAddr(t.bLo), inBase+blockio.BulkAddr(t.bHi), pivot) - inBase)
		}
		aCut = mi - t.aLo
		bCut = c - t.bLo
		low.aHi = mi
		low.bHi = c
		up.aLo, up.aHi = mi+1, t.aHi
		up.bLo, up.bHi = c, t.bHi
	} else {
		mi := t.bLo + bLen/2
		pivot = st.ReadElem(inBase + blockio.BulkAddr(mi))
		if stable {
			mi = uint64(w.lowerBound(inBase+blockio.BulkAddr(t.bLo), inBase+blockio.BulkAddr(mi), pivot) - inBase)
		}
		// equal keys in the earlier run sort before the pivot
		c := uint64(w.upperBound(inBase+blockio.BulkAddr(t.aLo), inBase+blockio.BulkAddr(t.aHi), pivot) - inBase)
		aCut = c - t.aLo
		bCut = mi - t.bLo
		low.aHi = c
		low.bHi = mi
		up.aLo, up.aHi = c, t.aHi
		up.bLo, up.bHi = mi+1, t.bHi
	}

	border := t.out + aCut + bCut
	st.WriteElem(outBase+blockio.BulkAddr(border), pivot)
	up.out = border + 1
	return low, up, true
}

// mergeLeaf performs the actual two-run merge of a single-worker task.
// An empty side degenerates to a verbatim copy with no comparisons.
func (w *worker) mergeLeaf(inBase, outBase blockio.BulkAddr, t mergeTask) {
	aLen := t.aHi - t.aLo
	bLen := t.bHi - t.bLo
	switch {
	case aLen == 0 && bLen == 0:
	case aLen == 0:
		w.copyRange(inBase+blockio.BulkAddr(t.bLo), outBase+blockio.BulkAddr(t.out), bLen)
	case bLen == 0:
		w.copyRange(inBase+blockio.BulkAddr(t.aLo), outBase+blockio.BulkAddr(t.out), aLen)
	default:
		w.mergeRuns(inBase, outBase, t.aLo, t.aHi, t.bLo, t.bHi, t.out)
	}
}
