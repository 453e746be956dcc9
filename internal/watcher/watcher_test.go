package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{DebounceDelay: 50 * time.Millisecond}
}

type eventSink struct {
	mu      sync.Mutex
	batches [][]FileEvent
}

func (s *eventSink) handle(events []FileEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
}

func (s *eventSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *eventSink) all() []FileEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FileEvent
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func TestWatcher_FiltersAndDebounces(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	otherPath := filepath.Join(dir, "notes.txt")

	sink := &eventSink{}
	w, err := New(testConfig(), sink.handle, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.AddFile(rulesPath))
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(otherPath, []byte("x"), 0o644))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(rulesPath, []byte("Alpha: {}\n"), 0o644))
	}

	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, rulesPath, events[0].Path)
	assert.Equal(t, 1, sink.count())
}

func TestWatcher_RenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte("old"), 0o644))

	sink := &eventSink{}
	w, err := New(testConfig(), sink.handle, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.AddFile(rulesPath))
	w.Start()
	defer w.Stop()

	tmp := filepath.Join(dir, "rules.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0o644))
	require.NoError(t, os.Rename(tmp, rulesPath))

	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, rulesPath, sink.all()[0].Path)
}

func TestWatcher_AddRemoveFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")

	w, err := New(testConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.AddFile(a))
	require.NoError(t, w.AddFile(a))
	require.NoError(t, w.AddFile(b))
	assert.Equal(t, []string{a, b}, w.WatchedFiles())

	require.NoError(t, w.RemoveFile(a))
	assert.Equal(t, []string{b}, w.WatchedFiles())
	assert.Equal(t, 1, w.dirs[dir])

	require.NoError(t, w.RemoveFile(b))
	assert.Empty(t, w.WatchedFiles())
	assert.NotContains(t, w.dirs, dir)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	assert.Error(t, w.AddFile(filepath.Join(dir, "missing", "c.yaml")))
}

func TestService_TriggersPass(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	settingsPath := filepath.Join(dir, "variables.yaml")

	var mu sync.Mutex
	calls := 0
	trigger := func() error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	}

	svc, err := NewService(testConfig(), []string{rulesPath, settingsPath, ""}, trigger, zerolog.Nop())
	require.NoError(t, err)
	svc.Start()
	defer svc.Stop()

	require.NoError(t, os.WriteFile(settingsPath, []byte("PUID: 1000\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), svc.Triggers())
}

func TestService_NilTriggerIgnoresEvents(t *testing.T) {
	svc, err := NewService(testConfig(), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	defer svc.Stop()

	assert.NotPanics(t, func() {
		svc.handleEvents([]FileEvent{{Path: "/rules.yaml", Op: "write", Timestamp: time.Now()}})
	})
	assert.Zero(t, svc.Triggers())
}
