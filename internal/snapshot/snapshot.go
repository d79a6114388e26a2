// Package snapshot persists the error context to the run directory so the
// crash handler can read it after the process dies.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/metrics"
)

// Writer encodes a context and swaps it into place at path. It implements
// scope.Sink.
type Writer struct {
	path string

	mu  sync.Mutex
	buf []byte // reused encode buffer
}

// NewWriter returns a Writer for path. The directory must already exist.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the destination file.
func (w *Writer) Path() string { return w.path }

// Persist writes c to a temp file next to the destination and renames it
// over the destination, so readers see either the old or the new snapshot.
func (w *Writer) Persist(c *event.Context) error {
	start := time.Now()
	err := w.persist(c)
	metrics.ContextWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ContextWrites.WithLabelValues("error").Inc()
		return err
	}
	metrics.ContextWrites.WithLabelValues("ok").Inc()
	return nil
}

func (w *Writer) persist(c *event.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := c.MarshalMsg(w.buf[:0])
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	w.buf = data

	tmp := filepath.Join(filepath.Dir(w.path), "."+filepath.Base(w.path)+"."+uuid.NewString()+".tmp")
	if err := writeSynced(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write context snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename context snapshot to %s: %w", w.path, err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read decodes the snapshot at path.
func Read(path string) (*event.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context snapshot %s: %w", path, err)
	}
	var c event.Context
	rest, err := c.UnmarshalMsg(data)
	if err != nil {
		return nil, fmt.Errorf("decode context snapshot %s: %w", path, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode context snapshot %s: %d trailing bytes", path, len(rest))
	}
	return &c, nil
}
