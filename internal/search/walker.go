package search

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
)

// worker drains the frontier until it is empty
type worker struct {
	id       int
	opts     *SearchOptions
	pattern  *Pattern
	frontier *Frontier
	excluded map[string]bool
	found    []MatchRecord
}

func newWorker(id int, opts *SearchOptions, pattern *Pattern, frontier *Frontier) *worker {
	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excluded[name] = true
	}
	return &worker{
		id:       id,
		opts:     opts,
		pattern:  pattern,
		frontier: frontier,
		excluded: excluded,
		found:    make([]MatchRecord, 0, opts.BatchSize),
	}
}

// run claims directories until none is pending or ctx is done.
// Buffered matches are always flushed before returning.
func (w *worker) run(ctx context.Context) error {
	defer w.flush()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir, ok := w.frontier.ClaimNext()
		if !ok {
			return nil
		}
		if !w.frontier.TryClaimVisited(dir) {
			continue
		}

		w.frontier.Enqueue(w.scanDirectory(dir), w.opts.Order)
	}
}

// scanDirectory lists dir, buffers its matches and returns the
// subdirectories to traverse, in listing order
func (w *worker) scanDirectory(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.frontier.AddWarning()
		if errors.Is(err, fs.ErrNotExist) {
			workerLog(w.id).Debugf("Directory vanished before it was read: %s", dir)
		} else {
			workerLog(w.id).Warnf("Cannot read directory '%s': %v", dir, err)
		}
		// os.ReadDir returns what it read before failing
		if len(entries) == 0 {
			return nil
		}
	}

	var subdirs []string
	files := 0
	scanned := 0

	for _, entry := range entries {
		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}

		path := filepath.Join(dir, name)
		isDir, err := entryIsDir(entry)
		if err != nil {
			workerLog(w.id).Debugf("Cannot determine type of '%s': %v", path, err)
			continue
		}

		scanned++
		if !isDir {
			files++
			if w.opts.Mode.includesFiles() && w.pattern.Matches(name) {
				w.add(MatchRecord{Path: path, Kind: KindFile})
			}
			continue
		}

		if w.opts.Mode.includesDirs() && w.pattern.Matches(name) {
			w.add(MatchRecord{Path: path, Kind: KindDirectory})
		}
		if w.shouldDescend(path, name) {
			subdirs = append(subdirs, path)
		}
	}

	w.frontier.AddScanned(files, scanned)
	return subdirs
}

// entryIsDir classifies an entry without following symlinks. A link is
// reported as a non-directory so link cycles are never walked.
func entryIsDir(entry fs.DirEntry) (bool, error) {
	t := entry.Type()
	switch {
	case t&fs.ModeSymlink != 0:
		return false, nil
	case t.IsDir():
		return true, nil
	case t.IsRegular():
		return false, nil
	}

	// Irregular or unknown type bits, ask the filesystem
	info, err := entry.Info()
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// shouldDescend applies the depth limit and the exclusion rules
func (w *worker) shouldDescend(path, name string) bool {
	if w.excluded[name] {
		LogDebug("Skipping excluded directory: %s", path)
		return false
	}
	if w.opts.ExcludeHidden && strings.HasPrefix(name, ".") {
		LogDebug("Skipping hidden directory: %s", path)
		return false
	}
	if w.opts.DepthLimited && depthOf(path, w.opts.RootDir) > w.opts.MaxDepth {
		return false
	}
	return true
}

func (w *worker) add(m MatchRecord) {
	w.found = append(w.found, m)
	if len(w.found) >= w.opts.BatchSize {
		w.flush()
	}
}

func (w *worker) flush() {
	if len(w.found) == 0 {
		return
	}
	w.frontier.RecordMatches(w.id, w.found)
	w.found = w.found[:0]
}

// depthOf counts the path segments between root and path; root itself is 0
func depthOf(path, root string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
