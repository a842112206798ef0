// Command bench runs manual, non-unit-test scenarios against the
// engine: throughput under load, overwrite behavior, read-back
// integrity, compaction correctness, and concurrent reader safety. It
// complements the package-level test suites with end-to-end scenarios
// that are more naturally driven as a standalone program than a *_test.go
// table.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aether-labs/kvs/internal/engine"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "write":
		testWriteThroughput()
	case "overlapping":
		testOverlappingKey()
	case "integrity":
		testIntegrity()
	case "compaction":
		testCompaction()
	case "concurrent":
		testConcurrentReaders()
	default:
		fmt.Printf("Unknown scenario: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run tests/bench.go <scenario>")
	fmt.Println()
	fmt.Println("Scenarios:")
	fmt.Println("  write       - write 100,000 unique keys and measure throughput")
	fmt.Println("  overlapping - overwrite a single key repeatedly and verify the latest value wins")
	fmt.Println("  integrity   - write 100k keys, randomly read 1,000 back and verify")
	fmt.Println("  compaction  - force several compactions and verify data survives them")
	fmt.Println("  concurrent  - hammer the store with concurrent reader clones during writes")
}

func openBench(threshold int64) (engine.Engine, string) {
	dir, err := os.MkdirTemp("", "kvs-bench-*")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	e, err := engine.Open(engine.Options{Dir: dir, CompactionThresholdBytes: threshold})
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}
	return e, dir
}

func banner(title string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 60))
}

func testWriteThroughput() {
	banner("Scenario: write throughput")

	e, dir := openBench(0)
	defer os.RemoveAll(dir)
	defer e.Close()

	const totalKeys = 100_000
	start := time.Now()

	for i := 0; i < totalKeys; i++ {
		key := fmt.Sprintf("key_%d", i)
		value := fmt.Sprintf("value_%d", i)
		if err := e.Set(key, value); err != nil {
			log.Fatalf("set key_%d: %v", i, err)
		}
		if (i+1)%10_000 == 0 {
			elapsed := time.Since(start)
			fmt.Printf("progress: %d/%d keys (%.2f keys/sec)\n", i+1, totalKeys, float64(i+1)/elapsed.Seconds())
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("\ntotal time: %v, rate: %.2f keys/sec\n", elapsed, float64(totalKeys)/elapsed.Seconds())
	fmt.Println("PASSED")
}

func testOverlappingKey() {
	banner("Scenario: overlapping key writes")

	e, dir := openBench(0)
	defer os.RemoveAll(dir)
	defer e.Close()

	key := "key_1"
	if err := e.Set(key, "value_A"); err != nil {
		log.Fatalf("set value_A: %v", err)
	}
	if err := e.Set(key, "value_B"); err != nil {
		log.Fatalf("set value_B: %v", err)
	}

	value, err := e.Get(key)
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	if value != "value_B" {
		fmt.Printf("FAILED: expected value_B, got %q\n", value)
		os.Exit(1)
	}
	fmt.Println("PASSED: latest value correctly returned")
}

func testIntegrity() {
	banner("Scenario: write-then-random-read integrity")

	e, dir := openBench(0)
	defer os.RemoveAll(dir)
	defer e.Close()

	const totalKeys = 100_000
	start := time.Now()
	for i := 0; i < totalKeys; i++ {
		key := fmt.Sprintf("key_%d", i)
		value := fmt.Sprintf("value_%d", i)
		if err := e.Set(key, value); err != nil {
			log.Fatalf("set key_%d: %v", i, err)
		}
	}
	fmt.Printf("write completed in %v\n", time.Since(start))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	errors := 0
	for i := 0; i < 1000; i++ {
		idx := rng.Intn(totalKeys)
		key := fmt.Sprintf("key_%d", idx)
		want := fmt.Sprintf("value_%d", idx)

		got, err := e.Get(key)
		if err != nil {
			errors++
			fmt.Printf("ERROR: get %s: %v\n", key, err)
			continue
		}
		if got != want {
			errors++
			fmt.Printf("ERROR: %s: want %q, got %q\n", key, want, got)
		}
	}

	if errors > 0 {
		fmt.Printf("FAILED: %d errors\n", errors)
		os.Exit(1)
	}
	fmt.Println("PASSED: all 1000 random reads correct")
}

func testCompaction() {
	banner("Scenario: compaction correctness")

	e, dir := openBench(4096)
	defer os.RemoveAll(dir)
	defer e.Close()

	const keys = 2000
	for round := 0; round < 5; round++ {
		for i := 0; i < keys; i++ {
			key := fmt.Sprintf("key_%d", i)
			value := fmt.Sprintf("round_%d_value_%d", round, i)
			if err := e.Set(key, value); err != nil {
				log.Fatalf("set: %v", err)
			}
		}
	}

	errors := 0
	for i := 0; i < keys; i++ {
		key := fmt.Sprintf("key_%d", i)
		want := fmt.Sprintf("round_4_value_%d", i)
		got, err := e.Get(key)
		if err != nil {
			errors++
			fmt.Printf("ERROR: get %s: %v\n", key, err)
			continue
		}
		if got != want {
			errors++
			fmt.Printf("ERROR: %s: want %q, got %q\n", key, want, got)
		}
	}

	if errors > 0 {
		fmt.Printf("FAILED: %d errors after repeated compaction\n", errors)
		os.Exit(1)
	}
	fmt.Println("PASSED: data survives repeated compaction")
}

func testConcurrentReaders() {
	banner("Scenario: concurrent readers during writes")

	e, dir := openBench(8192)
	defer os.RemoveAll(dir)
	defer e.Close()

	if err := e.Set("shared", "initial"); err != nil {
		log.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 16)

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			clone, err := e.Clone()
			if err != nil {
				errCh <- err
				return
			}
			defer clone.Close()

			for i := 0; i < 500; i++ {
				if _, err := clone.Get("shared"); err != nil {
					errCh <- err
					return
				}
				key := fmt.Sprintf("g%d-k%d", id, i)
				if err := clone.Set(key, "v"); err != nil {
					errCh <- err
					return
				}
			}
		}(g)
	}

	wg.Wait()
	close(errCh)

	errors := 0
	for err := range errCh {
		errors++
		fmt.Printf("ERROR: %v\n", err)
	}

	value, err := e.Get("shared")
	if err != nil || value != "initial" {
		fmt.Printf("FAILED: shared key corrupted: value=%q err=%v\n", value, err)
		os.Exit(1)
	}

	if errors > 0 {
		fmt.Printf("FAILED: %d goroutine errors\n", errors)
		os.Exit(1)
	}
	fmt.Println("PASSED: concurrent readers observed no corruption")
}
