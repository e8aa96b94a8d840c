package blocksort

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	blockerrors "github.com/tamirms/blocksort/errors"
)

// Fingerprint is an order-insensitive digest of an element multiset.
// Two slices have equal fingerprints if and only if (up to hash
// collision) one is a permutation of the other, so comparing the
// fingerprint taken before a sort with the one taken after checks that
// no element was lost, duplicated or corrupted.
type Fingerprint struct {
	Count uint64
	Sum   uint64
	Xor   uint64
	Hash  uint64 // per-element xxHash64 values folded by addition
}

// NewFingerprint digests data. The xxHash component hashes each element
// independently and folds the results commutatively, so element order
// does not matter.
func NewFingerprint(data []uint64) Fingerprint {
	var fp Fingerprint
	var buf [8]byte
	for _, v := range data {
		fp.Count++
		fp.Sum += v
		fp.Xor ^= v
		binary.LittleEndian.PutUint64(buf[:], v)
		fp.Hash += xxhash.Sum64(buf[:])
	}
	return fp
}

// IsSorted reports whether data is in ascending order.
func IsSorted(data []uint64) bool {
	for i := 1; i < len(data); i++ {
		if data[i-1] > data[i] {
			return false
		}
	}
	return true
}

// Check validates a sort outcome: output must be ascending and a
// permutation of the multiset described by want. This is the post-hoc
// harness check; the sort itself never calls it.
func Check(output []uint64, want Fingerprint) error {
	if !IsSorted(output) {
		return blockerrors.ErrOutputUnsorted
	}
	if got := NewFingerprint(output); got != want {
		return fmt.Errorf("%w: fingerprint %+v, want %+v", blockerrors.ErrPermutation, got, want)
	}
	return nil
}
