package tempstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
)

func TestDiskStore_AcquireRelease(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	h, err := store.Acquire(context.Background(), []byte("hello"), "W2_2023.PDF")
	require.NoError(t, err)

	assert.Equal(t, "W2_2023.PDF", h.Name)
	assert.Equal(t, int64(5), h.Size)
	assert.True(t, strings.HasPrefix(filepath.Base(h.Path), "taxdoc-"))
	assert.Equal(t, ".pdf", filepath.Ext(h.Path))

	data, err := h.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Release(h))
	assert.True(t, h.Released())
	_, statErr := os.Stat(h.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiskStore_DoubleRelease(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	h, err := store.Acquire(context.Background(), []byte("x"), "a.png")
	require.NoError(t, err)

	require.NoError(t, store.Release(h))
	assert.ErrorIs(t, store.Release(h), ErrAlreadyReleased)
}

func TestDiskStore_ResourceGone(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	h, err := store.Acquire(context.Background(), []byte("x"), "a.png")
	require.NoError(t, err)
	require.NoError(t, os.Remove(h.Path))

	_, err = h.ReadAll()
	assert.ErrorIs(t, err, ErrResourceGone)
	assert.ErrorIs(t, store.Release(h), ErrResourceGone)
}

func TestAcquire_EmptyData(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDiskStore(dir)
	require.NoError(t, err)

	for name, m := range map[string]Manager{"disk": disk, "memory": NewMemoryStore()} {
		t.Run(name, func(t *testing.T) {
			h, err := m.Acquire(context.Background(), nil, "empty.pdf")
			assert.Nil(t, h)
			assert.True(t, errors.HasCode(err, errors.ErrorInputValidation))
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquire_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Acquire(ctx, []byte("x"), "a.png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	store := NewMemoryStore()
	input := []byte("abc")

	h, err := store.Acquire(context.Background(), input, "r.jpg")
	require.NoError(t, err)
	input[0] = 'z'

	data, err := h.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Empty(t, h.Path)

	require.NoError(t, store.Release(h))
	_, err = h.ReadAll()
	assert.ErrorIs(t, err, ErrAlreadyReleased)
	assert.ErrorIs(t, store.Release(h), ErrAlreadyReleased)
}

func TestDiskStore_ConcurrentHandlesAreIndependent(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	paths := make([]string, 20)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := store.Acquire(context.Background(), []byte{byte(i) + 1}, "doc.tif")
			if !assert.NoError(t, err) {
				return
			}
			paths[i] = h.Path
			assert.NoError(t, store.Release(h))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestSanitizeExt(t *testing.T) {
	assert.Equal(t, ".pdf", sanitizeExt("file.PDF"))
	assert.Equal(t, ".jpeg", sanitizeExt("a.b.jpeg"))
	assert.Equal(t, "", sanitizeExt("noext"))
	assert.Equal(t, "", sanitizeExt("evil.p$f"))
	assert.Equal(t, "", sanitizeExt("x.waytoolong"))
}

func TestNew(t *testing.T) {
	m, err := New("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, m)

	m, err = New("disk", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, m)

	_, err = New("s3", "")
	assert.Error(t, err)
}
