package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"
	"github.com/otiai10/copy"
)

// FileOperation represents the type of operation to perform on found items
type FileOperation int

const (
	NoOperation FileOperation = iota
	CopyFiles
	MoveFiles
)

func (op FileOperation) String() string {
	switch op {
	case CopyFiles:
		return "copy"
	case MoveFiles:
		return "move"
	default:
		return "none"
	}
}

// ConflictResolutionPolicy defines how to handle name conflicts in the target
type ConflictResolutionPolicy int

const (
	Skip ConflictResolutionPolicy = iota
	Overwrite
	Rename
)

// ParseConflictPolicy accepts skip, overwrite or rename
func ParseConflictPolicy(s string) (ConflictResolutionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return Skip, nil
	case "overwrite":
		return Overwrite, nil
	case "rename":
		return Rename, nil
	default:
		return Skip, errors.Errorf("unknown conflict policy %q (want skip, overwrite or rename)", s)
	}
}

// FileOperationOptions contains settings for file operations
type FileOperationOptions struct {
	Operation      FileOperation
	TargetDir      string
	ConflictPolicy ConflictResolutionPolicy
}

// OperationSummary counts what ApplyFileOperation did
type OperationSummary struct {
	Done    int
	Skipped int
	Failed  int
}

// ApplyFileOperation copies or moves every match into opts.TargetDir.
// A match that lives inside another matched directory travels with that
// directory and is not handled on its own. Failures are logged and
// counted; the first one is returned after all items were attempted.
func ApplyFileOperation(ctx context.Context, matches []MatchRecord, opts FileOperationOptions) (OperationSummary, error) {
	var summary OperationSummary
	if opts.Operation == NoOperation {
		return summary, nil
	}

	if err := os.MkdirAll(opts.TargetDir, 0755); err != nil {
		return summary, errors.WrapPrefix(err, "failed to create target directory", 0)
	}
	if err := checkDirWritable(opts.TargetDir); err != nil {
		return summary, errors.WrapPrefix(err, "target directory is not writable", 0)
	}

	absTarget, _ := filepath.Abs(opts.TargetDir)

	var firstErr error
	for _, m := range topLevelMatches(matches) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		// Never copy the target into itself, nor a directory into its own subtree
		if abs, err := filepath.Abs(m.Path); err == nil {
			if isWithin(absTarget, abs) {
				summary.Skipped++
				continue
			}
			if isWithin(abs, absTarget) {
				LogWarning("Skipping %s, the target directory is inside it", m.Path)
				summary.Skipped++
				continue
			}
		}

		done, err := handleFileOperation(m.Path, opts)
		switch {
		case err != nil:
			summary.Failed++
			LogError("Failed to %s %s: %v", opts.Operation, m.Path, err)
			if firstErr == nil {
				firstErr = err
			}
		case done:
			summary.Done++
		default:
			summary.Skipped++
		}
	}
	return summary, firstErr
}

// topLevelMatches drops matches nested under a matched directory
func topLevelMatches(matches []MatchRecord) []MatchRecord {
	dirs := make(map[string]bool)
	for _, m := range matches {
		if m.Kind == KindDirectory {
			dirs[m.Path] = true
		}
	}

	out := make([]MatchRecord, 0, len(matches))
	for _, m := range matches {
		if !hasMatchedAncestor(m.Path, dirs) {
			out = append(out, m)
		}
	}
	return out
}

func hasMatchedAncestor(path string, dirs map[string]bool) bool {
	for {
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		if dirs[parent] {
			return true
		}
		path = parent
	}
}

// isWithin reports whether path is dir or lies below it
func isWithin(dir, path string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// handleFileOperation processes one item; done is false when the conflict
// policy skipped it
func handleFileOperation(path string, opts FileOperationOptions) (bool, error) {
	if _, err := os.Lstat(path); err != nil {
		return false, errors.WrapPrefix(err, "failed to get source info", 0)
	}

	target := resolveConflict(filepath.Join(opts.TargetDir, filepath.Base(path)), opts.ConflictPolicy)
	if target == "" {
		LogDebug("Skipping %s, target already exists", path)
		return false, nil
	}

	switch opts.Operation {
	case CopyFiles:
		return true, copyItem(path, target, opts.ConflictPolicy)
	case MoveFiles:
		return true, moveItem(path, target, opts.ConflictPolicy)
	default:
		return false, errors.Errorf("unknown operation: %v", opts.Operation)
	}
}

// checkDirWritable verifies if a directory is writable
func checkDirWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// copyItem copies a file or a whole directory tree; links are copied as links
func copyItem(src, target string, policy ConflictResolutionPolicy) error {
	if policy == Overwrite {
		if err := os.RemoveAll(target); err != nil {
			return errors.WrapPrefix(err, fmt.Sprintf("failed to replace %s", target), 0)
		}
	}
	err := copy.Copy(src, target, copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		PreserveTimes: true,
	})
	if err != nil {
		return errors.WrapPrefix(err, "failed to copy", 0)
	}
	return nil
}

// moveItem renames src, falling back to copy and delete across devices
func moveItem(src, target string, policy ConflictResolutionPolicy) error {
	if policy == Overwrite {
		if err := os.RemoveAll(target); err != nil {
			return errors.WrapPrefix(err, fmt.Sprintf("failed to replace %s", target), 0)
		}
	}
	if err := os.Rename(src, target); err == nil {
		return nil
	}
	if err := copyItem(src, target, Skip); err != nil {
		return errors.WrapPrefix(err, "failed to copy during move", 0)
	}
	return os.RemoveAll(src)
}

// resolveConflict handles name conflicts according to the policy.
// An empty result means the item is skipped.
func resolveConflict(path string, policy ConflictResolutionPolicy) string {
	if _, err := os.Lstat(path); err != nil {
		return path
	}

	switch policy {
	case Overwrite:
		return path
	case Rename:
		ext := filepath.Ext(path)
		base := strings.TrimSuffix(path, ext)
		for counter := 1; ; counter++ {
			newPath := fmt.Sprintf("%s_%d%s", base, counter, ext)
			if _, err := os.Lstat(newPath); err != nil {
				return newPath
			}
		}
	default:
		return ""
	}
}
