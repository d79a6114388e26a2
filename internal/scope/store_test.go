package scope_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/crashctx/internal/event"
	"github.com/gyaneshwarpardhi/crashctx/internal/scope"
)

// recordingSink keeps a copy of every persisted context.
type recordingSink struct {
	mu    sync.Mutex
	saved []*event.Context
	err   error
}

func (r *recordingSink) Persist(c *event.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, c.Clone())
	return r.err
}

func (r *recordingSink) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

func (r *recordingSink) last() *event.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved[len(r.saved)-1]
}

func TestStore_PersistsOncePerMutation(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	mutations := []func(){
		func() { s.SetRelease("1.0") },
		func() { s.RemoveRelease() },
		func() { s.SetLevel(event.LevelFatal) },
		func() { s.SetTransaction("checkout") },
		func() { s.RemoveTransaction() },
		func() { s.SetUser(event.User{ID: "42"}) },
		func() { s.RemoveUser() },
		func() { s.SetTag("k", "v") },
		func() { s.RemoveTag("k") },
		func() { s.SetExtra("k", "v") },
		func() { s.RemoveExtra("k") },
		func() { s.SetFingerprint([]string{"a"}) },
		func() { s.RemoveFingerprint() },
		func() { s.SetEnvironment("prod") },
		func() { s.SetDist("7") },
	}
	for i, m := range mutations {
		m()
		assert.Equal(t, i+1, sink.calls(), "after mutation %d", i)
	}
}

func TestStore_Defaults(t *testing.T) {
	s := scope.New(nil, nil)
	c := s.Snapshot()
	assert.Equal(t, event.LevelError, c.Level)
	assert.Nil(t, c.Release)
	assert.Empty(t, c.Tags)
	assert.NotNil(t, c.Fingerprint)
}

func TestStore_TagSetThenRemoveLeavesEmptyMap(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	s.SetTag("region", "eu")
	s.RemoveTag("region")

	got := sink.last()
	require.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	s.RemoveTag("missing")
	s.RemoveExtra("missing")
	s.RemoveRelease()
	s.RemoveTransaction()
	s.RemoveUser()

	assert.Equal(t, 5, sink.calls())
	assert.True(t, event.NewContext().Equal(sink.last()))
}

func TestStore_SetUserOnlyEmail(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	s.SetUser(event.User{ID: "1", Username: "old", IPAddress: "10.0.0.1"})
	s.SetUser(event.User{Email: "jane@example.com"})

	assert.Equal(t, map[string]string{"email": "jane@example.com"}, sink.last().User)
}

func TestStore_SetFingerprintReplaces(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	s.SetFingerprint([]string{"a", "b"})
	s.SetFingerprint([]string{"c"})
	assert.Equal(t, []string{"c"}, sink.last().Fingerprint)

	s.SetFingerprint(nil)
	assert.Equal(t, []string{}, sink.last().Fingerprint)

	s.SetFingerprint([]string{"a", "b"})
	s.RemoveFingerprint()
	assert.Equal(t, []string{}, sink.last().Fingerprint)
}

func TestStore_FingerprintNotAliased(t *testing.T) {
	s := scope.New(nil, nil)
	parts := []string{"a", "b"}
	s.SetFingerprint(parts)
	parts[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, s.Snapshot().Fingerprint)
}

func TestStore_SinkErrorKeepsMutation(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	s := scope.New(sink, nil)

	s.SetRelease("2.0")
	c := s.Snapshot()
	require.NotNil(t, c.Release)
	assert.Equal(t, "2.0", *c.Release)
}

func TestStore_ConcurrentMutationsAreSerialized(t *testing.T) {
	sink := &recordingSink{}
	s := scope.New(sink, nil)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.SetTag(string(rune('a'+w)), "v")
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, sink.calls())
	assert.Len(t, s.Snapshot().Tags, workers)
}
