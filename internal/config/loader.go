package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override the file.
const EnvPrefix = "SENTRY_"

// Loader reads a YAML options file, overlays the environment and watches the
// file for changes. An empty path means environment and defaults only.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Options
	onChange []func(*Options)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	opts, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = opts
	return l, nil
}

// Options returns the current (latest) options.
func (l *Loader) Options() *Options {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Path returns the watched file, or "" when there is none.
func (l *Loader) Path() string { return l.path }

// OnChange registers a callback invoked whenever the options reload.
func (l *Loader) OnChange(fn func(*Options)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that reloads the options on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, fmt.Errorf("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous options", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the options.
func (l *Loader) Reload() (*Options, error) {
	opts, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = opts
	callbacks := make([]func(*Options), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(opts)
	}
	return opts, nil
}

func (l *Loader) load() (*Options, error) {
	var opts Options
	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", l.path, err)
		}
	}
	if err := overlayEnv(&opts); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	if err := Validate(&opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// overlayEnv sets every option that has a SENTRY_* variable, e.g.
// SENTRY_DATABASE_PATH → database_path.
func overlayEnv(opts *Options) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	if err := k.Unmarshal("", opts); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	return nil
}
