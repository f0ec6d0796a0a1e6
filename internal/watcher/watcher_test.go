package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/watcher"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 0\n"), 0644))

	w, err := watcher.New(watcher.Config{
		Path:        path,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("a: %d\n", i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 0\n"), 0644))

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 1\n"), 0644))

	select {
	case <-onChange:
		t.Fatal("should not notify for unrelated file")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "gone", "state.yaml")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/tmp/state.yaml")

	assert.Equal(t, "/tmp/state.yaml", cfg.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDur)
}

// collector records values delivered by OnApplied.
type collector struct {
	mu     sync.Mutex
	values []observable.Value
	errs   []error
}

func (c *collector) applied(v observable.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *collector) failed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *collector) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values), len(c.errs)
}

func TestFeed_AppliesInitialAndChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 1\n"), 0644))

	c := observable.New(observable.Value{"keep": true})
	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	col := &collector{}
	done := make(chan error, 1)
	go func() {
		done <- watcher.Feed(ctx, w, c, watcher.FeedOptions{OnApplied: col.applied, OnError: col.failed})
	}()

	require.Eventually(t, func() bool {
		return c.Value()["count"] == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, true, c.Value()["keep"], "merge keeps existing keys")

	writeAtomic(t, path, "count: 2\n")
	require.Eventually(t, func() bool {
		return c.Value()["count"] == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Feed did not return after cancel")
	}

	applied, failed := col.counts()
	require.GreaterOrEqual(t, applied, 2)
	require.Equal(t, 0, failed)
}

func TestFeed_OverwriteAndBadContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 1\n"), 0644))

	c := observable.New(observable.Value{"stale": true})
	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	col := &collector{}
	go func() {
		_ = watcher.Feed(ctx, w, c, watcher.FeedOptions{Overwrite: true, OnApplied: col.applied, OnError: col.failed})
	}()

	require.Eventually(t, func() bool {
		v := c.Value()
		_, stale := v["stale"]
		return v["count"] == 1 && !stale
	}, time.Second, 10*time.Millisecond)

	// A list is not a valid state document; the container keeps its value.
	writeAtomic(t, path, "- 1\n- 2\n")
	require.Eventually(t, func() bool {
		_, failed := col.counts()
		return failed >= 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, observable.Value{"count": 1}, c.Value())
}

func TestFeed_NotifiesOnlyForChangedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 1\nother: 1\n"), 0644))

	c := observable.New(observable.Value{"keep": true})
	var mu sync.Mutex
	var seen []observable.Value
	c.Subscribe(func(v observable.Value) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, v)
	}, observable.WithKey("count"), observable.WithDependencies("count"))
	notified := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	col := &collector{}
	go func() {
		_ = watcher.Feed(ctx, w, c, watcher.FeedOptions{OnApplied: col.applied, OnError: col.failed})
	}()

	require.Eventually(t, func() bool { return c.Value()["other"] == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, notified())

	// Editing only other leaves the count subscriber alone.
	writeAtomic(t, path, "count: 1\nother: 2\n")
	require.Eventually(t, func() bool { return c.Value()["other"] == 2 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, notified())

	writeAtomic(t, path, "count: 2\nother: 2\n")
	require.Eventually(t, func() bool { return notified() == 2 }, time.Second, 10*time.Millisecond)

	// Deleting a key from the file removes it from the container but keeps
	// keys the file never had.
	writeAtomic(t, path, "count: 2\n")
	require.Eventually(t, func() bool {
		_, ok := c.Value()["other"]
		return !ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, observable.Value{"count": 2, "keep": true}, c.Value())

	_, failed := col.counts()
	require.Equal(t, 0, failed)
}

func TestFeed_SkipsUnchangedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count: 1\n"), 0644))

	c := observable.New(nil)
	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := c.Watch(ctx)
	go func() {
		_ = watcher.Feed(ctx, w, c, watcher.FeedOptions{})
	}()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("initial load was not applied")
	}

	writeAtomic(t, path, "count: 1\n")
	writeAtomic(t, path, "count: 1\n")
	select {
	case event := <-ch:
		t.Fatalf("unchanged file produced a change: %v", event.Payload.Keys)
	case <-time.After(200 * time.Millisecond):
	}
}

// writeAtomic replaces path via rename so the feeder never sees a
// truncated file.
func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}
