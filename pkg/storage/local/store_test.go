package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/resumeparser-backend/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	store.now = func() time.Time { return time.UnixMilli(42) }

	loc, err := store.Save(ctx, "../cv.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "uploads", "42_.._cv.txt"), loc)

	rc, err := store.Open(ctx, loc)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, loc))
	_, err = store.Open(ctx, loc)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, store.Delete(ctx, loc))
}

func TestSaveNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	store.now = func() time.Time { return time.UnixMilli(7) }

	first, err := store.Save(ctx, "cv.pdf", "", []byte("first"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "cv.pdf", "", []byte("second"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "8_cv.pdf", filepath.Base(second))

	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestPing(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	require.Error(t, store.Ping(context.Background()))
}

func TestSaveAcceptsVeryLongNames(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	loc, err := store.Save(context.Background(), strings.Repeat("n", 300)+".pdf", "application/pdf", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(loc, ".pdf"))
	assert.LessOrEqual(t, len(filepath.Base(loc)), 255)
}

func TestSaveRemovesPartialFileOnWriteError(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	store.write = func(f *os.File, data []byte) (int, error) {
		n, _ := f.Write(data[:1])
		return n, errors.New("disk full")
	}

	_, err = store.Save(context.Background(), "cv.pdf", "application/pdf", []byte("partial"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
