// Package sdk wires the context store, breadcrumb log and run directory
// together and hands the upload endpoint to the external crash handler.
package sdk

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/crashctx/internal/breadcrumb"
	"github.com/gyaneshwarpardhi/crashctx/internal/config"
	"github.com/gyaneshwarpardhi/crashctx/internal/dsn"
	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/metrics"
	"github.com/gyaneshwarpardhi/crashctx/internal/rundir"
	"github.com/gyaneshwarpardhi/crashctx/internal/scope"
	"github.com/gyaneshwarpardhi/crashctx/internal/snapshot"
)

// ErrNoDSN is returned by Init when no DSN is configured.
var ErrNoDSN = errors.New("sdk: no DSN specified")

// CrashHandler captures crashes and uploads minidumps together with the
// context file. Start is called exactly once, after the run directory exists.
type CrashHandler interface {
	Start(minidumpURL, eventPath string) error
}

type breadcrumbLog interface {
	Append(event.Breadcrumb) error
	Breadcrumbs() ([]event.Breadcrumb, error)
}

type nopLog struct{}

func (nopLog) Append(event.Breadcrumb) error { return nil }
func (nopLog) Breadcrumbs() ([]event.Breadcrumb, error) { return nil, nil }

// Client is the initialised SDK. A Client returned alongside an error is
// disabled: mutators still update memory but nothing reaches disk.
type Client struct {
	store   *scope.Store
	crumbs  breadcrumbLog
	run     *rundir.Run
	url     string
	enabled bool

	mu      sync.Mutex
	applied config.Options // release/environment/dist last applied
}

// Init validates the DSN, creates the run directory, seeds the context from
// opts and starts the crash handler. On failure it returns a disabled Client
// and the reason; callers may ignore the error and keep using the Client.
func Init(opts *config.Options, handler CrashHandler) (*Client, error) {
	logger := slog.Default()
	disabled := &Client{store: scope.New(scope.NopSink{}, logger), crumbs: nopLog{}}
	metrics.SDKEnabled.Set(0)

	if opts.DSN == "" {
		logger.Error("no DSN specified, SDK disabled")
		return disabled, ErrNoDSN
	}
	d, err := dsn.Parse(opts.DSN)
	if err != nil {
		logger.Error("invalid DSN, SDK disabled", "err", err)
		return disabled, fmt.Errorf("sdk: %w", err)
	}
	url := d.MinidumpURL()
	logger.Debug("initializing with minidump endpoint", "url", url)

	run, err := rundir.Create(opts.DatabasePath)
	if err != nil {
		logger.Error("failed to create run directory, SDK disabled", "err", err)
		return disabled, fmt.Errorf("sdk: %w", err)
	}

	c := &Client{
		store:   scope.New(snapshot.NewWriter(run.EventPath()), logger),
		crumbs:  breadcrumb.NewLog(run.BreadcrumbDir(), logger),
		run:     run,
		url:     url,
		enabled: true,
	}
	c.ApplyOptions(opts)
	c.store.Flush()

	if handler != nil {
		if err := handler.Start(url, run.EventPath()); err != nil {
			logger.Error("crash handler failed to start", "err", err)
		}
	}
	metrics.SDKEnabled.Set(1)
	logger.Info("sdk initialized", "dsn", d.String(), "run_id", run.ID, "run_path", run.Path)
	return c, nil
}

// ApplyOptions copies release, environment and dist from opts into the
// context when they differ from what was last applied. An emptied option
// removes the field.
func (c *Client) ApplyOptions(opts *config.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply := func(prev, next string, set func(string), remove func()) {
		switch {
		case next == prev:
		case next == "":
			remove()
		default:
			set(next)
		}
	}
	apply(c.applied.Release, opts.Release, c.store.SetRelease, c.store.RemoveRelease)
	apply(c.applied.Environment, opts.Environment, c.store.SetEnvironment, c.store.RemoveEnvironment)
	apply(c.applied.Dist, opts.Dist, c.store.SetDist, c.store.RemoveDist)
	c.applied.Release, c.applied.Environment, c.applied.Dist = opts.Release, opts.Environment, opts.Dist
}

// Store returns the context store.
func (c *Client) Store() *scope.Store { return c.store }

// AddBreadcrumb records b. Write failures are logged by the log itself and
// never reach the caller.
func (c *Client) AddBreadcrumb(b event.Breadcrumb) {
	_ = c.crumbs.Append(b)
}

// Breadcrumbs returns the retained breadcrumbs, oldest first.
func (c *Client) Breadcrumbs() ([]event.Breadcrumb, error) {
	return c.crumbs.Breadcrumbs()
}

// Enabled reports whether Init succeeded.
func (c *Client) Enabled() bool { return c.enabled }

// MinidumpURL is the upload endpoint, or "" when disabled.
func (c *Client) MinidumpURL() string { return c.url }

// Run returns the run directory, or nil when disabled.
func (c *Client) Run() *rundir.Run { return c.run }

// EventPath is the context snapshot path, or "" when disabled.
func (c *Client) EventPath() string {
	if c.run == nil {
		return ""
	}
	return c.run.EventPath()
}
