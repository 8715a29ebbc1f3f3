// Command bench measures how fast the sqlite store writes labs and reads
// them back, first through a fresh handle and then through a reused one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aretw0/loft"
	"github.com/aretw0/loft/pkg/tracker"
)

func main() {
	count := flag.Int("count", 1000, "Number of labs to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark database after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "loft_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dbPath := filepath.Join(benchDir, "bench.db")
	open := func() *loft.App {
		app, err := loft.New(ctx,
			loft.WithLogger(logger),
			loft.WithAdapter("sqlite"),
			loft.WithPath(dbPath),
			loft.WithWatch(false),
		)
		if err != nil {
			panic(err)
		}
		return app
	}

	app := open()
	if err := app.Tracker.AddSubject(ctx, tracker.Subject{ID: "bench", Title: "Benchmark"}); err != nil {
		panic(err)
	}

	fmt.Printf("Writing %d labs to %s...\n", *count, dbPath)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		lab := tracker.Lab{
			ID:          strconv.Itoa(i),
			SubjectID:   "bench",
			Title:       fmt.Sprintf("Lab %d", i),
			Description: "Benchmark lab",
		}
		if err := app.Tracker.AddLab(ctx, lab); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Writes took: %v\n", time.Since(startGen))
	if err := app.Close(); err != nil {
		panic(err)
	}

	// Run 1: fresh handle, as a new CLI invocation would see it
	cold := open()
	fmt.Println("Reading labs (Run 1 - Cold)...")
	start := time.Now()
	labs, err := cold.Tracker.Labs(ctx, "bench")
	if err != nil {
		panic(err)
	}
	duration := time.Since(start)
	fmt.Printf("Run 1 Result: %v (Items: %d)\n", duration, len(labs))

	fmt.Println("Reading labs (Run 2 - Warm)...")
	start = time.Now()
	labs2, err := cold.Tracker.Labs(ctx, "bench")
	if err != nil {
		panic(err)
	}
	duration2 := time.Since(start)
	fmt.Printf("Run 2 Result: %v (Items: %d)\n", duration2, len(labs2))
	_ = cold.Close()

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d labs):\n", *count)
	fmt.Printf("  Cold: %v\n", duration)
	fmt.Printf("  Warm: %v\n", duration2)
	fmt.Printf("--------------------------------------------------\n")
}
