package breadcrumb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gyaneshwarpardhi/crashctx/internal/event"
)

// Read reconstructs the retained breadcrumbs in dir, oldest first. It is
// meant for a reader outside the writing process: the file modified less
// recently holds strictly older records. When both files carry the same
// modification time the fuller one is older, since only the active file can
// hold fewer than MaxPerFile records. Missing files are skipped.
func Read(dir string) ([]event.Breadcrumb, error) {
	type candidate struct {
		mtime   int64
		records []event.Breadcrumb
	}
	var files []candidate
	for _, name := range Files {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat breadcrumb file %s: %w", path, err)
		}
		records, err := readFiles(path)
		if err != nil {
			return nil, err
		}
		files = append(files, candidate{mtime: info.ModTime().UnixNano(), records: records})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].mtime != files[j].mtime {
			return files[i].mtime < files[j].mtime
		}
		return len(files[i].records) > len(files[j].records)
	})

	var out []event.Breadcrumb
	for _, f := range files {
		out = append(out, f.records...)
	}
	return out, nil
}

// Breadcrumbs returns the retained breadcrumbs oldest first, using the log's
// own rotation state instead of file times.
func (l *Log) Breadcrumbs() ([]event.Breadcrumb, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	older := filepath.Join(l.dir, Files[1-l.active])
	newer := filepath.Join(l.dir, Files[l.active])
	return readFiles(older, newer)
}

func readFiles(paths ...string) ([]event.Breadcrumb, error) {
	var out []event.Breadcrumb
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read breadcrumb file %s: %w", path, err)
		}
		for len(data) > 0 {
			var b event.Breadcrumb
			data, err = b.UnmarshalMsg(data)
			if err != nil {
				return out, fmt.Errorf("decode breadcrumb file %s: %w", path, err)
			}
			out = append(out, b)
		}
	}
	return out, nil
}
