package blocksort

import (
	"context"
	"errors"
	"slices"
	"testing"

	blockerrors "github.com/tamirms/blocksort/errors"
)

// Small geometry used throughout these tests. It forces multiple run
// formation blocks, multiple ping-pong passes and window refills at
// sizes a test can afford.
var smallGeometry = []SortOption{
	WithBlockElems(64),
	WithWindowElems(16),
}

func TestSortEmpty(t *testing.T) {
	output := runSort(t, []uint64{})
	if len(output) != 0 {
		t.Fatalf("expected empty output, got %d elements", len(output))
	}
}

func TestSortSingle(t *testing.T) {
	output := runSort(t, []uint64{42})
	if output[0] != 42 {
		t.Fatalf("output = %v, want [42]", output)
	}
}

func TestSortTiny(t *testing.T) {
	input := []uint64{5, 3, 4, 1, 2}
	checkSorted(t, input, runSort(t, input))
}

func TestSortSingleWorker(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 10_000)
	opts := append(slices.Clone(smallGeometry), WithWorkers(1))
	checkSorted(t, input, runSort(t, input, opts...))
}

func TestSortParallelRandom(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 200_000)
	opts := append(slices.Clone(smallGeometry), WithWorkers(16))
	checkSorted(t, input, runSort(t, input, opts...))
}

func TestSortMillion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large sort in short mode")
	}
	rng := newTestRNG(t)
	input := randomElems(rng, 1_000_000)
	output := runSort(t, input, WithWorkers(16))
	if err := Check(output, NewFingerprint(input)); err != nil {
		t.Fatal(err)
	}
}

func TestSortAllEqual(t *testing.T) {
	input := make([]uint64, 10_000)
	for i := range input {
		input[i] = 7
	}
	opts := append(slices.Clone(smallGeometry), WithWorkers(8))
	checkSorted(t, input, runSort(t, input, opts...))
}

func TestSortReverse(t *testing.T) {
	// Four full run formation blocks plus a one-element trailing run.
	n := 4*64 + 1
	input := make([]uint64, n)
	for i := range input {
		input[i] = uint64(n - i)
	}
	opts := append(slices.Clone(smallGeometry), WithWorkers(4))
	checkSorted(t, input, runSort(t, input, opts...))
}

// TestSortBoundaryLengths sweeps element counts straddling multiples of
// the run formation block and the cursor window, where off-by-one bugs
// in run bookkeeping and refill clipping live.
func TestSortBoundaryLengths(t *testing.T) {
	rng := newTestRNG(t)
	var lengths []int
	for _, base := range []int{16, 64, 128, 64 * 3, 64 * 16} {
		lengths = append(lengths, base-1, base, base+1)
	}
	for _, workers := range []int{1, 2, 3, 7, 8} {
		for _, n := range lengths {
			input := randomElems(rng, n)
			opts := append(slices.Clone(smallGeometry), WithWorkers(workers))
			output := runSort(t, input, opts...)
			if err := Check(output, NewFingerprint(input)); err != nil {
				t.Fatalf("workers=%d n=%d: %v", workers, n, err)
			}
		}
	}
}

// TestSortNonPowerOfTwoWorkers exercises truncated clusters: rounds where
// a root has no merge partner and rounds where whole clusters idle.
func TestSortNonPowerOfTwoWorkers(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 50_000)
	for _, workers := range []int{3, 5, 6, 9, 13} {
		opts := append(slices.Clone(smallGeometry), WithWorkers(workers))
		output := runSort(t, input, opts...)
		if err := Check(output, NewFingerprint(input)); err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
	}
}

// TestSortMoreWorkersThanBlocks gives most workers empty partitions; they
// must still participate in every protocol round.
func TestSortMoreWorkersThanBlocks(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 100)
	opts := append(slices.Clone(smallGeometry), WithWorkers(16))
	checkSorted(t, input, runSort(t, input, opts...))
}

// TestSortTinyPartitionHandoffs repeats small sorts whose late
// partitions are tiny or empty, so a later-round ready sender finishes
// its own cluster almost instantly and its hand-off races an earlier
// round's. With the ready channel on the sender each root drains the
// right worker's bounds regardless of timing; the coordinator's desync
// assertions turn any mix-up into a panic, so iterations make the
// ordering dependence visible to the race detector and to plain runs.
func TestSortTinyPartitionHandoffs(t *testing.T) {
	rng := newTestRNG(t)
	ctx := context.Background()
	sizes := []int{1, 15, 16, 17, 31, 33, 48}
	for _, workers := range []int{4, 5, 8} {
		for iter := 0; iter < 50; iter++ {
			for _, n := range sizes {
				data := randomElems(rng, n)
				want := NewFingerprint(data)
				err := SortSlice(ctx, data,
					WithWorkers(workers), WithBlockElems(16), WithWindowElems(8))
				if err != nil {
					t.Fatalf("workers=%d n=%d: %v", workers, n, err)
				}
				if err := Check(data, want); err != nil {
					t.Fatalf("workers=%d n=%d: %v", workers, n, err)
				}
			}
		}
	}
}

func TestSortAlreadySorted(t *testing.T) {
	input := make([]uint64, 20_000)
	for i := range input {
		input[i] = uint64(i)
	}
	opts := append(slices.Clone(smallGeometry), WithWorkers(8))
	checkSorted(t, input, runSort(t, input, opts...))
}

// TestSorterReuse cycles Load/Sort/Result on one Sorter with different
// inputs and checks the second cycle is unaffected by the first.
func TestSorterReuse(t *testing.T) {
	rng := newTestRNG(t)
	opts := append(slices.Clone(smallGeometry), WithWorkers(4))
	s, err := New(5000, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	output := make([]uint64, 5000)
	for cycle := 0; cycle < 3; cycle++ {
		input := randomElems(rng, 5000)
		if err := s.Load(input); err != nil {
			t.Fatalf("cycle %d: Load: %v", cycle, err)
		}
		if _, err := s.Sort(ctx); err != nil {
			t.Fatalf("cycle %d: Sort: %v", cycle, err)
		}
		if err := s.Result(output); err != nil {
			t.Fatalf("cycle %d: Result: %v", cycle, err)
		}
		checkSorted(t, input, output)
	}
}

func TestSortFileBacked(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 30_000)
	opts := append(slices.Clone(smallGeometry),
		WithWorkers(4), WithFileBacked(t.TempDir()))
	checkSorted(t, input, runSort(t, input, opts...))
}

func TestSortReaderBackends(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 20_000)
	for _, reader := range []ReaderID{ReaderBlock, ReaderStrided} {
		opts := append(slices.Clone(smallGeometry),
			WithWorkers(4), WithReader(reader))
		output := runSort(t, input, opts...)
		if err := Check(output, NewFingerprint(input)); err != nil {
			t.Fatalf("reader=%s: %v", reader, err)
		}
	}
}

func TestSortStableVariant(t *testing.T) {
	rng := newTestRNG(t)
	// Heavy duplication so the stable split-point searches actually run
	// on runs of equal keys.
	input := make([]uint64, 50_000)
	for i := range input {
		input[i] = rng.Uint64N(32)
	}
	opts := append(slices.Clone(smallGeometry), WithWorkers(8), WithStable())
	checkSorted(t, input, runSort(t, input, opts...))
}

func TestSortCustomSmallSort(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 2000)
	calls := 0
	opts := append(slices.Clone(smallGeometry),
		WithSortSmall(func(block []uint64) {
			calls++
			slices.Sort(block)
		}))
	output := runSort(t, input, opts...)
	checkSorted(t, input, output)
	if calls == 0 {
		t.Fatal("custom small-array sort was never invoked")
	}
}

func TestSortResultLocation(t *testing.T) {
	rng := newTestRNG(t)
	for _, workers := range []int{1, 2, 4, 5, 8} {
		input := randomElems(rng, 2000)
		opts := append(slices.Clone(smallGeometry), WithWorkers(workers))
		s, err := New(uint64(len(input)), opts...)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Load(input); err != nil {
			t.Fatalf("Load: %v", err)
		}
		res, err := s.Sort(context.Background())
		if err != nil {
			t.Fatalf("Sort: %v", err)
		}
		want := ResultInPrimary
		if numRounds(workers)%2 == 1 {
			want = ResultInAuxiliary
		}
		if res != want {
			t.Errorf("workers=%d: result in %s buffer, want %s", workers, res, want)
		}
		_ = s.Close()
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		opts []SortOption
		want error
	}{
		{"zero workers", []SortOption{WithWorkers(0)}, blockerrors.ErrWorkerCount},
		{"negative workers", []SortOption{WithWorkers(-1)}, blockerrors.ErrWorkerCount},
		{"zero block", []SortOption{WithBlockElems(0)}, blockerrors.ErrBlockSize},
		{"misaligned block", []SortOption{WithBlockElems(100)}, blockerrors.ErrBlockSize},
		{"zero window", []SortOption{WithWindowElems(0)}, blockerrors.ErrWindowSize},
		{"misaligned window", []SortOption{WithWindowElems(12)}, blockerrors.ErrWindowSize},
		{"oversized window", []SortOption{WithWindowElems(1 << 13)}, blockerrors.ErrWindowSize},
		{"bad reader", []SortOption{WithReader(ReaderID(99))}, blockerrors.ErrBadReader},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(100, tc.opts...)
			if !errors.Is(err, tc.want) {
				t.Fatalf("New error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLifecycleErrors(t *testing.T) {
	s, err := New(10, smallGeometry...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	output := make([]uint64, 10)

	if _, err := s.Sort(ctx); !errors.Is(err, blockerrors.ErrNotLoaded) {
		t.Errorf("Sort before Load: %v, want %v", err, blockerrors.ErrNotLoaded)
	}
	if err := s.Result(output); !errors.Is(err, blockerrors.ErrNotSorted) {
		t.Errorf("Result before Sort: %v, want %v", err, blockerrors.ErrNotSorted)
	}
	if err := s.Load(make([]uint64, 3)); !errors.Is(err, blockerrors.ErrLengthMismatch) {
		t.Errorf("Load wrong length: %v, want %v", err, blockerrors.ErrLengthMismatch)
	}

	input := []uint64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	if err := s.Load(input); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Sort(ctx); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if err := s.Result(make([]uint64, 4)); !errors.Is(err, blockerrors.ErrLengthMismatch) {
		t.Errorf("Result wrong length: %v, want %v", err, blockerrors.ErrLengthMismatch)
	}
	if err := s.Result(output); err != nil {
		t.Fatalf("Result: %v", err)
	}
	checkSorted(t, input, output)

	// Sort consumes the loaded input.
	if _, err := s.Sort(ctx); !errors.Is(err, blockerrors.ErrNotLoaded) {
		t.Errorf("Sort without re-Load: %v, want %v", err, blockerrors.ErrNotLoaded)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := s.Load(input); !errors.Is(err, blockerrors.ErrSorterClosed) {
		t.Errorf("Load after Close: %v, want %v", err, blockerrors.ErrSorterClosed)
	}
	if _, err := s.Sort(ctx); !errors.Is(err, blockerrors.ErrSorterClosed) {
		t.Errorf("Sort after Close: %v, want %v", err, blockerrors.ErrSorterClosed)
	}
	if err := s.Result(output); !errors.Is(err, blockerrors.ErrSorterClosed) {
		t.Errorf("Result after Close: %v, want %v", err, blockerrors.ErrSorterClosed)
	}
}

func TestSortContextCancelled(t *testing.T) {
	rng := newTestRNG(t)
	input := randomElems(rng, 4096)
	opts := append(slices.Clone(smallGeometry), WithWorkers(2))
	s, err := New(uint64(len(input)), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Load(input); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sort(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sort with cancelled context: %v, want %v", err, context.Canceled)
	}
}

func TestSortSlice(t *testing.T) {
	rng := newTestRNG(t)
	data := randomElems(rng, 10_000)
	want := NewFingerprint(data)
	opts := append(slices.Clone(smallGeometry), WithWorkers(4))
	if err := SortSlice(context.Background(), data, opts...); err != nil {
		t.Fatalf("SortSlice: %v", err)
	}
	if err := Check(data, want); err != nil {
		t.Fatalf("SortSlice output: %v", err)
	}
}
