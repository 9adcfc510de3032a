package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mitchellh/go-homedir"
)

// DefaultFileName is the report name used when no path is given
func DefaultFileName(t time.Time) string {
	return fmt.Sprintf("FileSearch_Results_%d.log", t.Unix())
}

// DefaultPath is DefaultFileName inside DefaultLocation
func DefaultPath(t time.Time) string {
	return filepath.Join(DefaultLocation(), DefaultFileName(t))
}

// DefaultLocation returns the user's desktop, or the working directory
// when no desktop directory exists
func DefaultLocation() string {
	return firstExistingDir(desktopCandidates(runtime.GOOS, os.Getenv))
}

// desktopCandidates lists desktop directories in preference order
func desktopCandidates(goos string, getenv func(string) string) []string {
	var candidates []string
	if goos == "windows" {
		if p := getenv("USERPROFILE"); p != "" {
			candidates = append(candidates, filepath.Join(p, "Desktop"))
		}
		if p := getenv("PUBLIC"); p != "" {
			candidates = append(candidates, filepath.Join(p, "Desktop"))
		}
		return candidates
	}

	home := getenv("HOME")
	if home == "" {
		home, _ = homedir.Dir()
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, "Desktop"))
	}
	if goos != "darwin" {
		if p := getenv("XDG_DESKTOP_DIR"); p != "" {
			candidates = append(candidates, p)
		}
	}
	return candidates
}

func firstExistingDir(candidates []string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
