package main

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// Input generators for the benchmark harness. These are deterministic
// for a given seed so repetitions and cross-run comparisons sort the
// same data.

// genUniform fills data with uniformly distributed keys derived by
// hashing a seeded counter stream.
func genUniform(data []uint64, seed uint64) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], seed)
	for i := range data {
		binary.LittleEndian.PutUint64(buf[8:16], uint64(i))
		data[i] = xxh3.Hash(buf[:])
	}
}

// genSorted fills data with an ascending sequence.
func genSorted(data []uint64) {
	for i := range data {
		data[i] = uint64(i)
	}
}

// genReverse fills data with a strictly descending sequence.
func genReverse(data []uint64) {
	n := uint64(len(data))
	for i := range data {
		data[i] = n - uint64(i)
	}
}

// genAlmostSorted fills data with an ascending sequence and then swaps
// roughly one pair per 128 elements, positions chosen by a seeded
// murmur3 stream.
func genAlmostSorted(data []uint64, seed uint64) {
	genSorted(data)
	n := len(data)
	if n < 2 {
		return
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], seed)
	swaps := n / 128
	for s := 0; s < swaps; s++ {
		binary.LittleEndian.PutUint64(buf[8:16], uint64(s))
		h1, h2 := murmur3.Sum128(buf[:])
		i := int(h1 % uint64(n))
		j := int(h2 % uint64(n))
		data[i], data[j] = data[j], data[i]
	}
}

// generate dispatches on the distribution name.
func generate(dist string, data []uint64, seed uint64) error {
	switch dist {
	case "uniform":
		genUniform(data, seed)
	case "sorted":
		genSorted(data)
	case "reverse":
		genReverse(data)
	case "almostsorted":
		genAlmostSorted(data, seed)
	default:
		return fmt.Errorf("unknown distribution %q", dist)
	}
	return nil
}
