package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d paths", len(got), n)
			}
			got = append(got, p)
		case <-deadline:
			t.Fatalf("timed out after %d of %d paths", len(got), n)
		}
	}
	sort.Strings(got)
	return got
}

func TestStartWatcherInitialScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024"), 0o755))
	for _, name := range []string{"w2.PDF", "2024/receipt.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true})
	require.NoError(t, err)

	got := collect(t, events, 2)
	assert.Equal(t, []string{filepath.Join(dir, "2024", "receipt.jpg"), filepath.Join(dir, "w2.PDF")}, got)
}

func TestStartWatcherNewFile(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	path := filepath.Join(dir, "invoice.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.docx"), []byte("x"), 0o644))

	got := collect(t, events, 1)
	assert.Equal(t, []string{path}, got)
}

func TestStartWatcherClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events, errs, err := StartWatcher(ctx, WatchConfig{Roots: []string{t.TempDir()}})
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("events channel not closed")
	}
	_, ok := <-errs
	assert.False(t, ok)
}

func TestStartWatcherErrors(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)

	_, _, err = StartWatcher(context.Background(), WatchConfig{Roots: []string{filepath.Join(t.TempDir(), "missing")}})
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	assert.True(t, allowed("a/b/scan.TIFF", DefaultExts))
	assert.True(t, allowed("scan.jpeg", DefaultExts))
	assert.False(t, allowed("scan.txt", DefaultExts))
	assert.False(t, allowed("scan", DefaultExts))
}
