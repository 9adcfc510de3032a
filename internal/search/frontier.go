package search

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// Frontier is the state shared by all workers of one search.
// Every method is a single critical section under mu; nothing outside
// this file touches the fields directly.
type Frontier struct {
	mu      sync.Mutex
	pending []string // head is pending[0]
	visited map[string]struct{}
	found   map[string]EntryKind
	stats   Stats
	log     *SessionLog
	echo    io.Writer // per-match console echo, nil when quiet
}

// NewFrontier creates a frontier seeded with root
func NewFrontier(root string) *Frontier {
	return &Frontier{
		pending: []string{root},
		visited: make(map[string]struct{}),
		found:   make(map[string]EntryKind),
	}
}

// ClaimNext pops the head of the pending queue
func (f *Frontier) ClaimNext() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return "", false
	}
	dir := f.pending[0]
	f.pending[0] = ""
	f.pending = f.pending[1:]
	return dir, true
}

// TryClaimVisited marks dir as visited and reports whether this call was
// the first to do so. The directories-searched counter follows the claim.
func (f *Frontier) TryClaimVisited(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[dir]; ok {
		return false
	}
	f.visited[dir] = struct{}{}
	f.stats.DirsSearched++
	return true
}

// Enqueue adds the subdirectories discovered in one directory. Depth-first
// puts them ahead of everything pending, still in discovery order.
func (f *Frontier) Enqueue(dirs []string, order Order) {
	if len(dirs) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if order == BreadthFirst {
		f.pending = append(f.pending, dirs...)
		return
	}

	head := make([]string, 0, len(dirs)+len(f.pending))
	head = append(head, dirs...)
	f.pending = append(head, f.pending...)
}

// RecordMatches merges a worker's buffered matches. A path already in the
// result set is not counted or logged again.
func (f *Frontier) RecordMatches(worker int, batch []MatchRecord) {
	if len(batch) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range batch {
		if _, ok := f.found[m.Path]; ok {
			continue
		}
		f.found[m.Path] = m.Kind
		f.stats.MatchesFound++

		line := fmt.Sprintf("Found %s: %s", m.Kind, m.Path)
		if f.echo != nil {
			fmt.Fprintf(f.echo, "[Worker %d] %s\n", worker, line)
		}
		if f.log != nil {
			f.log.WriteMatch(line)
		}
	}
}

// AddScanned bumps the scan counters for one listed directory
func (f *Frontier) AddScanned(files, entries int) {
	f.mu.Lock()
	f.stats.FilesScanned += files
	f.stats.EntriesScanned += entries
	f.mu.Unlock()
}

// AddWarning counts a recoverable failure
func (f *Frontier) AddWarning() {
	f.mu.Lock()
	f.stats.Warnings++
	f.mu.Unlock()
}

// Snapshot returns the counters and the pending queue length
func (f *Frontier) Snapshot() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stats
	s.Pending = len(f.pending)
	return s
}

// VisitedCount returns the number of claimed directories
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Results returns the result set sorted by path
func (f *Frontier) Results() []MatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]MatchRecord, 0, len(f.found))
	for path, kind := range f.found {
		out = append(out, MatchRecord{Path: path, Kind: kind})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// attachLog hands the session log to the frontier for the search's duration
func (f *Frontier) attachLog(log *SessionLog) {
	f.mu.Lock()
	f.log = log
	f.mu.Unlock()
}

// detachLog takes the session log back so it can be summarised and closed
func (f *Frontier) detachLog() *SessionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	log := f.log
	f.log = nil
	return log
}

func (f *Frontier) setEcho(w io.Writer) {
	f.mu.Lock()
	f.echo = w
	f.mu.Unlock()
}
