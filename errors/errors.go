// Package errors defines all exported error sentinels for the blocksort library.
//
// This is the single source of truth for error values. Both the top-level
// blocksort package and internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Construction errors. Sizing violations are detected before any sort
// begins; a Sorter that was constructed successfully never fails a size
// check mid-sort.
var (
	ErrBlockSize   = errors.New("blocksort: block size must be a positive multiple of the alignment granularity")
	ErrWindowSize  = errors.New("blocksort: cursor window size must be an aligned value no larger than the maximum transfer size")
	ErrWorkerCount = errors.New("blocksort: worker count must be at least 1")
	ErrBadReader   = errors.New("blocksort: unknown streaming reader backend")
)

// Lifecycle errors
var (
	ErrSorterClosed   = errors.New("blocksort: sorter is closed")
	ErrNotLoaded      = errors.New("blocksort: no input loaded")
	ErrNotSorted      = errors.New("blocksort: sort has not completed")
	ErrLengthMismatch = errors.New("blocksort: slice length does not match the configured element count")
)

// Verification errors, surfaced only by the harness-facing check helpers.
// The sort itself never returns these.
var (
	ErrOutputUnsorted = errors.New("blocksort: output is not in ascending order")
	ErrPermutation    = errors.New("blocksort: output is not a permutation of the input")
)
