package bits

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// TestAlignRoundTrip verifies that AlignUp/AlignDown bracket n and
// produce aligned values for random inputs and power-of-two alignments.
func TestAlignRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	const iterations = 10000

	for i := 0; i < iterations; i++ {
		align := uint64(1) << rng.Uint64N(20)
		n := rng.Uint64N(1 << 40)

		up := AlignUp(n, align)
		down := AlignDown(n, align)

		if !IsAligned(up, align) || !IsAligned(down, align) {
			t.Fatalf("iter %d: AlignUp(%d,%d)=%d or AlignDown=%d not aligned", i, n, align, up, down)
		}
		if up < n || up-n >= align {
			t.Fatalf("iter %d: AlignUp(%d,%d)=%d out of range", i, n, align, up)
		}
		if down > n || n-down >= align {
			t.Fatalf("iter %d: AlignDown(%d,%d)=%d out of range", i, n, align, down)
		}
		if IsAligned(n, align) && (up != n || down != n) {
			t.Fatalf("iter %d: aligned n=%d changed by rounding (up=%d down=%d)", i, n, up, down)
		}
	}
}

func TestCeilLog2(t *testing.T) {
	cases := []struct {
		n    uint64
		want int
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3},
		{7, 3}, {8, 3}, {9, 4}, {1 << 20, 20}, {1<<20 + 1, 21},
	}
	for _, c := range cases {
		if got := CeilLog2(c.n); got != c.want {
			t.Errorf("CeilLog2(%d) = %d, want %d", c.n, got, c.want)
		}
	}

	rng := newTestRNG(t)
	for i := 0; i < 10000; i++ {
		n := rng.Uint64N(1<<50) + 1
		k := CeilLog2(n)
		if uint64(1)<<k < n {
			t.Fatalf("iter %d: 1<<CeilLog2(%d) = %d < n", i, n, uint64(1)<<k)
		}
		if k > 0 && uint64(1)<<(k-1) >= n {
			t.Fatalf("iter %d: CeilLog2(%d) = %d not minimal", i, n, k)
		}
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct {
		n, d, want uint64
	}{
		{0, 4, 0}, {1, 4, 1}, {4, 4, 1}, {5, 4, 2}, {8, 4, 2}, {9, 4, 3}, {100, 7, 15},
	}
	for _, c := range cases {
		if got := CeilDiv(c.n, c.d); got != c.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", c.n, c.d, got, c.want)
		}
	}
}

func TestIsPow2(t *testing.T) {
	for k := 0; k < 64; k++ {
		if !IsPow2(uint64(1) << k) {
			t.Errorf("IsPow2(1<<%d) = false", k)
		}
	}
	for _, n := range []uint64{0, 3, 5, 6, 7, 9, 12, 1<<20 + 1} {
		if IsPow2(n) {
			t.Errorf("IsPow2(%d) = true", n)
		}
	}
}
