package scope

import (
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/metrics"
)

// Sink receives the full context after every mutation. It is called with the
// store locked and must not keep c after returning.
type Sink interface {
	Persist(c *event.Context) error
}

// NopSink discards snapshots. It backs an SDK that failed to initialise.
type NopSink struct{}

func (NopSink) Persist(*event.Context) error { return nil }

// Store owns the process-wide error context. Every mutator applies its
// change and hands the resulting context to the sink under one lock, so the
// sink only ever sees whole states. Sink failures are logged and counted;
// the in-memory change is kept either way.
type Store struct {
	mu     sync.Mutex
	ctx    *event.Context
	sink   Sink
	logger *slog.Logger
}

// New returns a Store holding an empty context. A nil logger means
// slog.Default().
func New(sink Sink, logger *slog.Logger) *Store {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{ctx: event.NewContext(), sink: sink, logger: logger}
}

// Snapshot returns a copy of the current context.
func (s *Store) Snapshot() *event.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Clone()
}

// Flush persists the current context without changing it.
func (s *Store) Flush() {
	s.update("flush", func(*event.Context) {})
}

// SetRelease sets the application release.
func (s *Store) SetRelease(release string) {
	s.update("release", func(c *event.Context) { c.Release = event.String(release) })
}

// RemoveRelease clears the release.
func (s *Store) RemoveRelease() {
	s.update("release", func(c *event.Context) { c.Release = nil })
}

// SetLevel sets the severity of the next report.
func (s *Store) SetLevel(level event.Level) {
	s.update("level", func(c *event.Context) { c.Level = level })
}

// SetDist sets the distribution identifier.
func (s *Store) SetDist(dist string) {
	s.update("dist", func(c *event.Context) { c.Dist = event.String(dist) })
}

// RemoveDist clears the distribution identifier.
func (s *Store) RemoveDist() {
	s.update("dist", func(c *event.Context) { c.Dist = nil })
}

// SetEnvironment sets the deployment environment.
func (s *Store) SetEnvironment(env string) {
	s.update("environment", func(c *event.Context) { c.Environment = event.String(env) })
}

// RemoveEnvironment clears the environment.
func (s *Store) RemoveEnvironment() {
	s.update("environment", func(c *event.Context) { c.Environment = nil })
}

// SetTransaction sets the name of the current transaction.
func (s *Store) SetTransaction(tx string) {
	s.update("transaction", func(c *event.Context) { c.Transaction = event.String(tx) })
}

// RemoveTransaction clears the transaction.
func (s *Store) RemoveTransaction() {
	s.update("transaction", func(c *event.Context) { c.Transaction = nil })
}

// SetUser replaces the whole user; empty fields are left out.
func (s *Store) SetUser(u event.User) {
	s.update("user", func(c *event.Context) { c.SetUser(u) })
}

// RemoveUser clears the user.
func (s *Store) RemoveUser() {
	s.update("user", func(c *event.Context) { c.User = map[string]string{} })
}

// SetTag sets or overwrites a tag.
func (s *Store) SetTag(key, value string) {
	s.update("tags", func(c *event.Context) { c.Tags[key] = value })
}

// RemoveTag is a no-op on the map when key is absent; the context is still
// persisted.
func (s *Store) RemoveTag(key string) {
	s.update("tags", func(c *event.Context) { delete(c.Tags, key) })
}

// SetExtra sets or overwrites an extra value.
func (s *Store) SetExtra(key, value string) {
	s.update("extra", func(c *event.Context) { c.Extra[key] = value })
}

// RemoveExtra deletes an extra value; absent keys are fine.
func (s *Store) RemoveExtra(key string) {
	s.update("extra", func(c *event.Context) { delete(c.Extra, key) })
}

// SetFingerprint replaces the fingerprint. An empty list restores default
// grouping.
func (s *Store) SetFingerprint(parts []string) {
	s.update("fingerprint", func(c *event.Context) { c.Fingerprint = append([]string{}, parts...) })
}

// RemoveFingerprint clears the fingerprint.
func (s *Store) RemoveFingerprint() {
	s.SetFingerprint(nil)
}

func (s *Store) update(field string, apply func(*event.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(s.ctx)
	metrics.ContextMutations.WithLabelValues(field).Inc()
	if err := s.sink.Persist(s.ctx); err != nil {
		s.logger.Warn("context not persisted", "field", field, "err", err)
	}
}
