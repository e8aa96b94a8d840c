// Package bits provides low-level alignment and power-of-two arithmetic
// primitives shared by the block transfer layer and the merge scheduler.
package bits

import "math/bits"

// AlignUp rounds n up to the next multiple of align.
// align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown rounds n down to the previous multiple of align.
// align must be a power of two.
func AlignDown(n, align uint64) uint64 {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align.
// align must be a power of two.
func IsAligned(n, align uint64) bool {
	return n&(align-1) == 0
}

// CeilLog2 returns the smallest k such that 1<<k >= n.
// CeilLog2(0) and CeilLog2(1) both return 0.
func CeilLog2(n uint64) int {
	if n <= 1 {
		return 0
	}
	return bits.Len64(n - 1)
}

// CeilDiv returns n/d rounded up. d must be nonzero.
func CeilDiv(n, d uint64) uint64 {
	return (n + d - 1) / d
}

// IsPow2 reports whether n is a power of two. IsPow2(0) is false.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
