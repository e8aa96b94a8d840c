package blocksort

import (
	"math/bits"

	intbits "github.com/tamirms/blocksort/internal/bits"
)

// The parallel merge runs in ceil(log2 W) rounds. In round r the workers
// are grouped into clusters of up to 1<<r consecutive ids; the cluster
// root is the worker whose low r bits are zero. The functions below are
// the whole activation schedule, kept as pure arithmetic so the protocol
// can be tested without running any workers.

// numRounds returns the number of protocol rounds for the given worker
// count.
func numRounds(workers int) int {
	return intbits.CeilLog2(uint64(workers))
}

// clusterRoot returns the root of the cluster containing id in round r.
func clusterRoot(id, round int) int {
	return id &^ (1<<round - 1)
}

// subRoot returns the worker owning the upper half of root's round-r
// cluster and whether it exists given the worker count. A root without a
// sub-root has no merge partner this round.
func subRoot(root, round, workers int) (int, bool) {
	s := root + 1<<(round-1)
	return s, s < workers
}

// readyRound returns the round in which worker id hands its accumulated
// run bounds to a cluster root. Worker 0 is always a root and never
// sends; every other worker sends exactly once, in the round after its
// last round as a root.
func readyRound(id int) int {
	if id == 0 {
		return 0
	}
	return bits.TrailingZeros(uint(id)) + 1
}

// handoff is one run-bounds exchange in the schedule: sender passes the
// bounds of its accumulated run to receiver, the root that will direct
// the cluster's merge.
type handoff struct {
	sender   int
	receiver int
}

// roundHandoffs enumerates the exchanges of one round in root order.
func roundHandoffs(round, workers int) []handoff {
	var hs []handoff
	for root := 0; root < workers; root += 1 << round {
		if s, ok := subRoot(root, round, workers); ok {
			hs = append(hs, handoff{sender: s, receiver: root})
		}
	}
	return hs
}
