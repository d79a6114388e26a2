// Package breadcrumb keeps the most recent breadcrumbs on disk in two
// alternating files of at most MaxPerFile records each.
package breadcrumb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/metrics"
)

// MaxPerFile is the number of records a file holds before the log rotates.
const MaxPerFile = 100

// File names of the two alternating breadcrumb files.
var Files = [2]string{"sentry-breadcrumb1.mp", "sentry-breadcrumb2.mp"}

// Log appends breadcrumbs to the active file, switching to the other file
// (and truncating it) once the active one holds MaxPerFile records.
type Log struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	active int // index into Files
	count  int // records in the active file, 0..MaxPerFile
	buf    []byte
}

// NewLog returns a Log writing into dir, which must exist. A nil logger
// means slog.Default().
func NewLog(dir string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{dir: dir, logger: logger}
}

// Append writes b to the active file. On failure the breadcrumb is dropped,
// the error is logged and returned, and the log state is left as it was.
func (l *Log) Append(b event.Breadcrumb) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	active, count := l.active, l.count
	if count == MaxPerFile {
		active, count = 1-active, 0
	}

	data, err := b.MarshalMsg(l.buf[:0])
	if err != nil {
		return l.drop(fmt.Errorf("encode breadcrumb: %w", err))
	}
	l.buf = data

	path := filepath.Join(l.dir, Files[active])
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if count == 0 {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	if err := writeFile(path, flags, data); err != nil {
		return l.drop(fmt.Errorf("write breadcrumb %s: %w", path, err))
	}

	if active != l.active {
		metrics.BreadcrumbRotations.Inc()
		l.logger.Debug("breadcrumb log rotated", "file", Files[active])
	}
	l.active, l.count = active, count+1
	metrics.BreadcrumbsWritten.Inc()
	return nil
}

// State reports the active file name and how many records it holds.
func (l *Log) State() (file string, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Files[l.active], l.count
}

// Dir returns the directory holding the breadcrumb files.
func (l *Log) Dir() string { return l.dir }

func (l *Log) drop(err error) error {
	metrics.BreadcrumbsDropped.Inc()
	l.logger.Warn("breadcrumb dropped", "err", err)
	return err
}

// writeRecord is swapped out in tests to simulate short writes.
var writeRecord = func(f *os.File, data []byte) (int, error) { return f.Write(data) }

// writeFile writes data with flags. A failed append is truncated back to the
// previous size so a torn record never hides later ones.
func writeFile(path string, flags int, data []byte) error {
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	var size int64
	if flags&os.O_APPEND != 0 {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		size = info.Size()
	}
	if _, err := writeRecord(f, data); err != nil {
		_ = f.Truncate(size)
		f.Close()
		return err
	}
	return f.Close()
}
