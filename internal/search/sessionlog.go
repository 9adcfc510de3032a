package search

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/gofrs/flock"
)

const sessionLogBufferSize = 32 * 1024

var (
	delimiterLine = strings.Repeat("=", 80)

	// now is replaced in tests
	now = time.Now
)

// SessionLog is the append-only text log of one search session.
// It is not safe for concurrent use; the Frontier serialises access.
type SessionLog struct {
	path   string
	file   *os.File
	writer *bufio.Writer
	lock   *flock.Flock
	failed bool
}

// OpenSessionLog opens path for appending. An advisory lock on path.lock
// keeps sessions from other processes out until Close.
func OpenSessionLog(path string) (*SessionLog, error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, errors.WrapPrefix(err, fmt.Sprintf("failed to lock session log %s", path), 0)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		lock.Unlock()
		return nil, errors.WrapPrefix(err, fmt.Sprintf("failed to open session log %s", path), 0)
	}

	return &SessionLog{
		path:   path,
		file:   file,
		writer: bufio.NewWriterSize(file, sessionLogBufferSize),
		lock:   lock,
	}, nil
}

// Path returns the log file path
func (l *SessionLog) Path() string {
	return l.path
}

// WriteHeader writes the session header block
func (l *SessionLog) WriteHeader(query, dir string) {
	l.writef("%s\n", delimiterLine)
	l.writef("FileSearch Session\n")
	l.writef("Started: %s\n", now().Format("2006-01-02 15:04:05"))
	l.writef("Query: %s\n", query)
	l.writef("Directory: %s\n", dir)
	l.writef("%s\n", delimiterLine)
}

// WriteMatch writes one timestamped line
func (l *SessionLog) WriteMatch(line string) {
	l.writef("[%s] %s\n", clockStamp(now()), line)
}

// WriteSummary writes the closing block
func (l *SessionLog) WriteSummary(elapsed time.Duration, stats Stats) {
	l.writef("\n%s\n", delimiterLine)
	l.writef("Search completed in %.2f seconds\n", elapsed.Seconds())
	l.writef("Directories searched: %d\n", stats.DirsSearched)
	l.writef("Files scanned: %d\n", stats.FilesScanned)
	l.writef("Matches found: %d\n", stats.MatchesFound)
	l.writef("%s\n", delimiterLine)
}

// Close flushes and closes the file and releases the lock
func (l *SessionLog) Close() error {
	defer l.lock.Unlock()

	if err := l.writer.Flush(); err != nil {
		l.file.Close()
		return errors.WrapPrefix(err, "failed to flush session log", 0)
	}
	if err := l.file.Close(); err != nil {
		return errors.WrapPrefix(err, "failed to close session log", 0)
	}
	return nil
}

// writef drops the line on failure; a broken log never stops a search
func (l *SessionLog) writef(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(l.writer, format, args...); err != nil && !l.failed {
		l.failed = true
		LogWarning("Session log %s: write failed, further lines are dropped: %v", l.path, err)
	}
}

// clockStamp renders HH:MM:SS of the wall-clock seconds since the epoch
func clockStamp(t time.Time) string {
	secs := t.Unix()
	return fmt.Sprintf("%02d:%02d:%02d", (secs/3600)%24, (secs/60)%60, secs%60)
}
