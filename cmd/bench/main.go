// Bench is a benchmarking tool for measuring blocksort throughput and
// memory usage across input distributions and worker counts.
//
// Usage:
//
//	go run ./cmd/bench -elems 10000000 -workers 8 -dist uniform
//
// Flags:
//
//	-elems     Number of elements to sort (default: 10,000,000)
//	-workers   Number of parallel workers (default: 1)
//	-dist      Distribution: uniform, sorted, reverse, almostsorted (default: uniform)
//	-stable    Use the stable merge variant (default: false)
//	-reader    Cursor layout: block or strided (default: block)
//	-file      Back bulk storage with a temp file instead of memory (default: false)
//	-reps      Number of sort repetitions to average over (default: 1)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/blocksort"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

func main() {
	elemsFlag := flag.Int("elems", 10_000_000, "number of elements to sort")
	workersFlag := flag.Int("workers", 1, "number of parallel workers")
	distFlag := flag.String("dist", "uniform", "distribution: uniform, sorted, reverse, almostsorted")
	stableFlag := flag.Bool("stable", false, "use the stable merge variant")
	readerFlag := flag.String("reader", "block", "cursor layout: block or strided")
	fileFlag := flag.Bool("file", false, "back bulk storage with a temp file")
	repsFlag := flag.Int("reps", 1, "number of sort repetitions")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sort phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (sort phase only)")
	flag.Parse()

	numElems := *elemsFlag
	reps := *repsFlag
	if reps < 1 {
		reps = 1
	}

	var reader blocksort.ReaderID
	switch *readerFlag {
	case "block":
		reader = blocksort.ReaderBlock
	case "strided":
		reader = blocksort.ReaderStrided
	default:
		fmt.Printf("Unknown reader: %s (use 'block' or 'strided')\n", *readerFlag)
		return
	}

	fmt.Printf("Generating %s input...\n", *distFlag)
	input := make([]uint64, numElems)
	if err := generate(*distFlag, input, 0x1234); err != nil {
		fmt.Printf("%v\n", err)
		return
	}
	want := blocksort.NewFingerprint(input)

	opts := []blocksort.SortOption{
		blocksort.WithWorkers(*workersFlag),
		blocksort.WithReader(reader),
	}
	if *stableFlag {
		opts = append(opts, blocksort.WithStable())
	}

	var tmpDir string
	if *fileFlag {
		dir, err := os.MkdirTemp("", "bench-")
		if err != nil {
			fmt.Printf("Failed to create temp dir: %v\n", err)
			return
		}
		defer func() { _ = os.RemoveAll(dir) }()
		tmpDir = dir
		opts = append(opts, blocksort.WithFileBacked(tmpDir))
	}

	sorter, err := blocksort.New(uint64(numElems), opts...)
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		return
	}
	defer func() { _ = sorter.Close() }()

	output := make([]uint64, numElems)

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses
	// that cause ~50ms overhead and distort CPU profiles.
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	// Start CPU profile for the sort phase
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Printf("Sorting (%d reps)...\n", reps)
	ctx := context.Background()
	var sortTotal, loadTotal time.Duration
	for rep := 0; rep < reps; rep++ {
		loadStart := time.Now()
		if err := sorter.Load(input); err != nil {
			fmt.Printf("Load failed: %v\n", err)
			return
		}
		loadTotal += time.Since(loadStart)

		sortStart := time.Now()
		if _, err := sorter.Sort(ctx); err != nil {
			fmt.Printf("Sort failed: %v\n", err)
			return
		}
		sortTotal += time.Since(sortStart)

		if err := sorter.Result(output); err != nil {
			fmt.Printf("Result failed: %v\n", err)
			return
		}
		if err := blocksort.Check(output, want); err != nil {
			fmt.Printf("Validation failed on rep %d: %v\n", rep, err)
			return
		}
	}

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC() // Get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(done)

	// Final memory samples
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	if final.Alloc > peakAlloc.Load() {
		peakAlloc.Store(final.Alloc)
	}
	finalRSS := getMaxRSS()
	if finalRSS > peakRSS.Load() {
		peakRSS.Store(finalRSS)
	}

	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	sortAvg := sortTotal / time.Duration(reps)
	loadAvg := loadTotal / time.Duration(reps)

	backingStr := "memory"
	if *fileFlag {
		backingStr = "file"
	}
	stableStr := "unstable"
	if *stableFlag {
		stableStr = "stable"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╦══════════════════╗\n")
	fmt.Printf("║ Dist: %-13s ║ Workers: %-5d ║ Backing: %-7s ║\n", *distFlag, *workersFlag, backingStr)
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Metric              ║ Value          ║ Notes            ║\n")
	fmt.Printf("╠═════════════════════╬════════════════╬══════════════════╣\n")
	fmt.Printf("║ Elements            ║ %12d   ║ -                ║\n", numElems)
	fmt.Printf("║ Merge variant       ║ %-14s ║ reader=%-9s ║\n", stableStr, *readerFlag)
	fmt.Printf("║ Load time           ║ %6.3f sec     ║ avg of %d reps    ║\n", loadAvg.Seconds(), reps)
	fmt.Printf("║ Sort time           ║ %6.3f sec     ║ avg of %d reps    ║\n", sortAvg.Seconds(), reps)
	fmt.Printf("║ Sort throughput     ║ %6.2f M/sec   ║ -                ║\n", float64(numElems)/sortAvg.Seconds()/1_000_000)
	fmt.Printf("║ Peak heap memory    ║ %6.1f MB      ║ -                ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %6.1f MB      ║ -                ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╩══════════════════╝\n")
}
