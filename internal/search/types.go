package search

import (
	"io"
	"time"
)

// Mode selects which kinds of entries can match
type Mode int

const (
	FilesOnly Mode = iota
	DirectoriesOnly
	FilesAndDirectories
)

func (m Mode) String() string {
	switch m {
	case FilesOnly:
		return "files"
	case DirectoriesOnly:
		return "directories"
	case FilesAndDirectories:
		return "both"
	default:
		return "unknown"
	}
}

func (m Mode) includesFiles() bool {
	return m == FilesOnly || m == FilesAndDirectories
}

func (m Mode) includesDirs() bool {
	return m == DirectoriesOnly || m == FilesAndDirectories
}

// Order is the frontier discipline for newly discovered directories
type Order int

const (
	BreadthFirst Order = iota
	DepthFirst
)

// EntryKind tells files and directories apart in results
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// MatchRecord is a single matched path
type MatchRecord struct {
	Path string
	Kind EntryKind
}

// SearchOptions contains search parameters
type SearchOptions struct {
	Query         string
	RootDir       string
	Mode          Mode
	MaxWorkers    int    // Clamped to available parallelism
	CaseSensitive bool
	Literal       bool   // Treat * and ? as ordinary characters
	DepthLimited  bool
	MaxDepth      int // Deepest directory scanned, root is 0; ignored unless DepthLimited
	Order         Order
	LogPath       string // Session log, empty disables it
	ExcludeDirs   []string
	ExcludeHidden bool
	BatchSize     int           // Matches buffered per worker before a flush
	PollInterval  time.Duration // Progress loop wake-up interval
	PrintInterval time.Duration // Progress line cadence
	Output        io.Writer     // Banner, progress and summary; nil discards
	Quiet         bool          // Do not echo every match to Output
	ShowProgress  bool
}

// Stats is a point-in-time copy of the frontier counters
type Stats struct {
	DirsSearched   int
	FilesScanned   int
	EntriesScanned int
	MatchesFound   int
	Warnings       int
	Pending        int
}

// Result is what a finished search returns
type Result struct {
	Matches []MatchRecord // Sorted by path
	Stats   Stats
	Elapsed time.Duration
	Workers int
}

// Paths returns the matched paths in result order
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		paths[i] = m.Path
	}
	return paths
}
