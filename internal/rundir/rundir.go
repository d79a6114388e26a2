// Package rundir creates the per-process run directory that holds the
// context snapshot and breadcrumb files for one execution.
package rundir

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// RunsDir is the directory under the base path that holds all runs.
	RunsDir = "sentry-runs"
	// EventFile is the context snapshot file name inside a run directory.
	EventFile = "event.mp"
)

// Run identifies one process execution. ID and Path never change.
type Run struct {
	ID   string
	Path string
}

// EventPath is the absolute path of the context snapshot.
func (r *Run) EventPath() string { return filepath.Join(r.Path, EventFile) }

// BreadcrumbDir is where the breadcrumb log keeps its two files.
func (r *Run) BreadcrumbDir() string { return r.Path }

// Creator makes run directories. The zero value is not usable; use New.
type Creator struct {
	now func() time.Time
	rng *rand.Rand
}

// New returns a Creator whose random source is seeded from the system
// entropy source.
func New() (*Creator, error) {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed run id source: %w", err)
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return &Creator{now: time.Now, rng: rand.New(src)}, nil
}

// Create is shorthand for New followed by Creator.Create.
func Create(basePath string) (*Run, error) {
	c, err := New()
	if err != nil {
		return nil, err
	}
	return c.Create(basePath)
}

// Create ensures basePath/sentry-runs exists, creating missing parents, and
// makes a fresh run directory in it, readable only by the owner. A run directory that already exists is
// reused; any other failure is returned.
func (c *Creator) Create(basePath string) (*Run, error) {
	base, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path %s: %w", basePath, err)
	}
	runs := filepath.Join(base, RunsDir)
	if err := os.MkdirAll(runs, 0o700); err != nil {
		return nil, fmt.Errorf("create runs directory %s: %w", runs, err)
	}

	id := c.nextID()
	path := filepath.Join(runs, id)
	if err := mkdir(path); err != nil {
		return nil, err
	}
	return &Run{ID: id, Path: path}, nil
}

// nextID returns "{unix seconds}-{random in [0, MaxInt32]}".
func (c *Creator) nextID() string {
	n := c.rng.Int64N(math.MaxInt32 + 1)
	return strconv.FormatInt(c.now().Unix(), 10) + "-" + strconv.FormatInt(n, 10)
}

func mkdir(path string) error {
	err := os.Mkdir(path, 0o700)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return fmt.Errorf("create run directory %s: %w", path, err)
}
