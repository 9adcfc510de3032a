package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/go-errors/errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrStartDir is returned when the start directory is unusable
	ErrStartDir = errors.Errorf("invalid start directory")
	// ErrEmptyQuery is returned for an empty query
	ErrEmptyQuery = errors.Errorf("empty search query")
)

const (
	defaultBatchSize     = 100
	defaultPollInterval  = 100 * time.Millisecond
	defaultPrintInterval = 2 * time.Second
)

// DefaultConcurrency is the available parallelism
func DefaultConcurrency() int {
	maxProcs := runtime.GOMAXPROCS(0)
	numCPU := runtime.NumCPU()
	if maxProcs < numCPU {
		return maxProcs
	}
	return numCPU
}

func applyDefaults(opts *SearchOptions) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PrintInterval <= 0 {
		opts.PrintInterval = defaultPrintInterval
	}

	limit := DefaultConcurrency()
	if opts.MaxWorkers <= 0 || opts.MaxWorkers > limit {
		opts.MaxWorkers = limit
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.DepthLimited && opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	opts.RootDir = filepath.Clean(opts.RootDir)
}

// ValidateStartDir checks that dir exists and is a directory
func ValidateStartDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.WrapPrefix(ErrStartDir, fmt.Sprintf("start directory does not exist: %s", dir), 0)
	}
	if !info.IsDir() {
		return errors.WrapPrefix(ErrStartDir, fmt.Sprintf("start directory is not a directory: %s", dir), 0)
	}
	return nil
}

// Search runs one search to completion and returns the sorted result set.
// When ctx is cancelled the matches found so far are returned together
// with the context error.
func Search(ctx context.Context, opts SearchOptions) (*Result, error) {
	if opts.Query == "" {
		return nil, ErrEmptyQuery
	}
	applyDefaults(&opts)
	if err := ValidateStartDir(opts.RootDir); err != nil {
		return nil, err
	}

	out := newConsole(opts.Output)
	pattern := NewPattern(opts.Query, opts.CaseSensitive, opts.Literal)
	frontier := NewFrontier(opts.RootDir)
	if !opts.Quiet {
		frontier.setEcho(out.w)
	}

	if opts.LogPath != "" {
		log, err := OpenSessionLog(opts.LogPath)
		if err != nil {
			LogWarning("Continuing without session log: %v", err)
		} else {
			log.WriteHeader(opts.Query, opts.RootDir)
			frontier.attachLog(log)
			fmt.Fprintf(out.w, "Logging to: %s\n", opts.LogPath)
		}
	}

	fmt.Fprintf(out.w, "Starting search with %d worker(s)...\n", opts.MaxWorkers)
	fmt.Fprintf(out.w, "Pattern: %s\n", opts.Query)
	fmt.Fprintf(out.w, "Directory: %s\n", opts.RootDir)
	LogDebug("Search started: query=%q root=%s mode=%s workers=%d wildcard=%v",
		opts.Query, opts.RootDir, opts.Mode, opts.MaxWorkers, pattern.IsWildcard())

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.MaxWorkers; i++ {
		w := newWorker(i, &opts, pattern, frontier)
		g.Go(func() error {
			return w.run(gctx)
		})
	}

	newProgressMonitor(frontier, &opts).run(gctx, start)
	runErr := g.Wait()
	elapsed := time.Since(start)

	stats := frontier.Snapshot()
	if runErr != nil {
		out.printf(color.FgYellow, "\nSearch interrupted after %.2f seconds\n", elapsed.Seconds())
	} else {
		out.printf(color.FgGreen, "\nSearch completed in %.2f seconds!\n", elapsed.Seconds())
	}
	fmt.Fprintf(out.w, "Directories searched: %d\n", stats.DirsSearched)
	fmt.Fprintf(out.w, "Files scanned: %d\n", stats.FilesScanned)
	fmt.Fprintf(out.w, "Matches found: %d\n", stats.MatchesFound)
	if stats.Warnings > 0 {
		out.printf(color.FgYellow, "Warnings: %d\n", stats.Warnings)
	}

	if log := frontier.detachLog(); log != nil {
		log.WriteSummary(elapsed, stats)
		if err := log.Close(); err != nil {
			LogWarning("%v", err)
		}
	}

	result := &Result{
		Matches: frontier.Results(),
		Stats:   stats,
		Elapsed: elapsed,
		Workers: opts.MaxWorkers,
	}
	return result, runErr
}
