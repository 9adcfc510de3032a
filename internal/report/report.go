// Package report writes the human-readable results report of a search.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-errors/errors"

	"filesearch/internal/search"
)

// Entry is one line of the report
type Entry struct {
	Path     string
	IsDir    bool
	Size     int64  // -1 when the size could not be read
	Checksum string // empty unless requested and computable
}

// Report is everything the writer needs
type Report struct {
	Query        string
	Directory    string
	Generated    time.Time
	Entries      []Entry
	TotalMatches int
	DirsSearched int
	FilesScanned int
}

// Options controls how a Report is built from a search result
type Options struct {
	Checksums bool
}

// FromResult collects sizes (and optionally checksums) for every match
func FromResult(query, dir string, res *search.Result, opts Options) *Report {
	r := &Report{
		Query:        query,
		Directory:    dir,
		Generated:    time.Now(),
		Entries:      make([]Entry, 0, len(res.Matches)),
		TotalMatches: res.Stats.MatchesFound,
		DirsSearched: res.Stats.DirsSearched,
		FilesScanned: res.Stats.FilesScanned,
	}

	for _, m := range res.Matches {
		e := Entry{Path: m.Path, IsDir: m.Kind == search.KindDirectory, Size: -1}
		// Lstat, so a link reads as the non-directory the search reported
		info, err := os.Lstat(m.Path)
		if err == nil {
			e.Size = info.Size()
			e.IsDir = info.IsDir()
		}
		if opts.Checksums && err == nil && info.Mode().IsRegular() {
			sum, err := Checksum(m.Path, info)
			if err != nil {
				search.LogWarning("Cannot checksum %s: %v", m.Path, err)
			} else {
				e.Checksum = fmt.Sprintf("%016x", sum)
			}
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Render produces the report text; entries are sorted by path
func (r *Report) Render() []byte {
	entries := make([]Entry, len(r.Entries))
	copy(entries, r.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	var b bytes.Buffer
	fmt.Fprintf(&b, "FileSearch Results\n")
	fmt.Fprintf(&b, "Generated: %s\n", r.Generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Query: %s\n", r.Query)
	fmt.Fprintf(&b, "Search directory: %s\n", r.Directory)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 80))

	for _, e := range entries {
		kind := "[FILE]"
		if e.IsDir {
			kind = "[DIR] "
		}
		fmt.Fprintf(&b, "%s %s", kind, e.Path)
		if e.Size >= 0 {
			fmt.Fprintf(&b, " (%s)", HumanSize(uint64(e.Size)))
		}
		if e.Checksum != "" {
			fmt.Fprintf(&b, " xxh64:%s", e.Checksum)
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "  Total matches: %d\n", r.TotalMatches)
	fmt.Fprintf(&b, "  Directories searched: %d\n", r.DirsSearched)
	fmt.Fprintf(&b, "  Files scanned: %d\n", r.FilesScanned)
	return b.Bytes()
}

// Write renders r to path atomically
func Write(path string, r *Report) error {
	if err := AtomicWrite(path, r.Render()); err != nil {
		return errors.WrapPrefix(err, fmt.Sprintf("error saving results to %s", path), 0)
	}
	return nil
}

// AtomicWrite writes data to a temp file next to path and renames it over path
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WrapPrefix(err, fmt.Sprintf("failed to create directory %s", dir), 0)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.WrapPrefix(err, "failed to create temp file", 0)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return errors.WrapPrefix(err, "failed to write to temp file", 0)
	}
	if err := tempFile.Sync(); err != nil {
		return errors.WrapPrefix(err, "failed to sync temp file", 0)
	}
	if err := tempFile.Close(); err != nil {
		return errors.WrapPrefix(err, "failed to close temp file", 0)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return errors.WrapPrefix(err, "failed to set permissions", 0)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.WrapPrefix(err, fmt.Sprintf("failed to rename temp file to %s", path), 0)
	}

	tempFile = nil
	return nil
}
