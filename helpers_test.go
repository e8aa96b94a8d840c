package blocksort

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	randv2 "math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *randv2.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return randv2.New(randv2.NewPCG(testSeed1^s1, testSeed2^s2))
}

// randomElems generates n deterministic pseudo-random elements.
func randomElems(rng *randv2.Rand, n int) []uint64 {
	data := make([]uint64, n)
	for i := range data {
		data[i] = rng.Uint64()
	}
	return data
}

// sortedReference returns an independently sorted copy of data.
func sortedReference(data []uint64) []uint64 {
	ref := slices.Clone(data)
	slices.Sort(ref)
	return ref
}

// checkSorted verifies output against an independently sorted copy of
// the input and against the input's multiset fingerprint.
func checkSorted(t *testing.T, input, output []uint64) {
	t.Helper()
	if err := Check(output, NewFingerprint(input)); err != nil {
		t.Fatalf("output validation failed: %v", err)
	}
	ref := sortedReference(input)
	if !slices.Equal(output, ref) {
		for i := range ref {
			if output[i] != ref[i] {
				t.Fatalf("output[%d] = %d, want %d", i, output[i], ref[i])
			}
		}
	}
}

// runSort sorts input through a fresh Sorter and returns the output.
func runSort(t *testing.T, input []uint64, opts ...SortOption) []uint64 {
	t.Helper()
	s, err := New(uint64(len(input)), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	if err := s.Load(input); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Sort(context.Background()); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	output := make([]uint64, len(input))
	if err := s.Result(output); err != nil {
		t.Fatalf("Result: %v", err)
	}
	return output
}
