package search

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
)

const (
	maxLogSize      = 10 * 1024 * 1024 // 10MB
	maxLogRotations = 5
)

var (
	diagMu   sync.Mutex
	diagLog  = newDiagnosticLogger(os.Stderr, WARNING)
	diagFile *os.File
)

// lineFormatter renders "[HH:MM:SS] [LEVEL] message key=value"
type lineFormatter struct{}

func (lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] [%s] %s", e.Time.Format("15:04:05"), levelLabel(e.Level), e.Message)
	for _, k := range sortedKeys(e.Data) {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelLabel(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARNING:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func newDiagnosticLogger(w io.Writer, level LogLevel) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(lineFormatter{})
	l.SetLevel(toLogrusLevel(level))
	return l
}

// SetDiagnostics redirects diagnostics to w at the given minimum level.
// When debugPath is set, diagnostics are also appended to that file,
// which is rotated first if it has grown past maxLogSize.
func SetDiagnostics(w io.Writer, level LogLevel, debugPath string) error {
	diagMu.Lock()
	defer diagMu.Unlock()

	closeDiagFileLocked()

	out := w
	if debugPath != "" {
		rotateLogFile(debugPath)
		file, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.WrapPrefix(err, fmt.Sprintf("failed to open debug log %s", debugPath), 0)
		}
		diagFile = file
		out = io.MultiWriter(w, file)
	}

	diagLog = newDiagnosticLogger(out, level)
	return nil
}

// CloseLogger closes the debug log file, if any
func CloseLogger() {
	diagMu.Lock()
	defer diagMu.Unlock()
	closeDiagFileLocked()
}

func closeDiagFileLocked() {
	if diagFile == nil {
		return
	}
	if err := diagFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close debug log: %v\n", err)
	}
	diagFile = nil
}

// rotateLogFile rotates log files if necessary
func rotateLogFile(logPath string) {
	fi, err := os.Stat(logPath)
	if err != nil || fi.Size() <= maxLogSize {
		return
	}
	for i := maxLogRotations - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", logPath, i)
		newPath := fmt.Sprintf("%s.%d", logPath, i+1)
		os.Rename(oldPath, newPath)
	}
	os.Rename(logPath, logPath+".1")
}

func logger() *logrus.Logger {
	diagMu.Lock()
	defer diagMu.Unlock()
	return diagLog
}

// workerLog returns an entry carrying the worker id
func workerLog(id int) *logrus.Entry {
	return logger().WithField("worker", id)
}

func LogDebug(format string, args ...interface{}) {
	logger().Debugf(format, args...)
}

func LogInfo(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

func LogWarning(format string, args ...interface{}) {
	logger().Warnf(format, args...)
}

func LogError(format string, args ...interface{}) {
	logger().Errorf(format, args...)
}
