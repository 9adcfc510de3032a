package search

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// console writes the user-facing lines of a search
type console struct {
	w       io.Writer
	colored bool
}

func newConsole(w io.Writer) *console {
	if w == nil {
		w = io.Discard
	}
	return &console{w: w, colored: isTerminal(w)}
}

// isTerminal reports whether w is a colour-capable stdout or stderr
func isTerminal(w io.Writer) bool {
	if w == os.Stdout || w == os.Stderr {
		return !color.NoColor
	}
	return false
}

func (c *console) printf(attr color.Attribute, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.colored {
		msg = color.New(attr).Sprint(msg)
	}
	fmt.Fprint(c.w, msg)
}

// progressMonitor polls the frontier and keeps one progress line up to date
type progressMonitor struct {
	frontier      *Frontier
	pollInterval  time.Duration
	printInterval time.Duration
	bar           *progressbar.ProgressBar
}

func newProgressMonitor(f *Frontier, opts *SearchOptions) *progressMonitor {
	m := &progressMonitor{
		frontier:      f,
		pollInterval:  opts.PollInterval,
		printInterval: opts.PrintInterval,
	}
	if opts.ShowProgress && opts.Output != nil {
		m.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(opts.Output),
			progressbar.OptionSetDescription("Searching"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionThrottle(opts.PollInterval),
			progressbar.OptionClearOnFinish(),
		)
	}
	return m
}

// run returns once the pending queue is empty or ctx is done
func (m *progressMonitor) run(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	lastPrint := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.finish()
			return
		case <-ticker.C:
		}

		s := m.frontier.Snapshot()
		if s.Pending == 0 {
			m.finish()
			return
		}

		if time.Since(lastPrint) >= m.printInterval {
			m.describe(s, time.Since(start))
			lastPrint = time.Now()
		}
	}
}

func (m *progressMonitor) describe(s Stats, elapsed time.Duration) {
	line := progressLine(s, elapsed)
	LogDebug("%s", line)
	if m.bar == nil {
		return
	}
	m.bar.Describe(line)
	m.bar.Add(1)
}

func (m *progressMonitor) finish() {
	if m.bar != nil {
		m.bar.Finish()
	}
}

// progressLine renders counts and throughput
func progressLine(s Stats, elapsed time.Duration) string {
	secs := elapsed.Seconds()
	if secs < 0.1 {
		secs = 0.1
	}
	return fmt.Sprintf("Progress: %d dirs, %d files, %d matches, %.1f files/sec",
		s.DirsSearched, s.FilesScanned, s.MatchesFound, float64(s.FilesScanned)/secs)
}
