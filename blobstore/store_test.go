package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "events/1/a.blk", []byte("hello")))
	require.NoError(t, store.Put(ctx, "events/1/b.blk", []byte("world!")))
	require.NoError(t, store.Put(ctx, "other/c.blk", []byte("x")))

	data, err := ReadAll(ctx, store, "events/1/a.blk")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	blob, err := store.Open(ctx, "events/1/b.blk")
	require.NoError(t, err)
	assert.Equal(t, int64(6), blob.Size())

	// Range read.
	p := make([]byte, 2)
	_, err = blob.ReadAt(ctx, p, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("or"), p)
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "events/")
	require.NoError(t, err)
	assert.Len(t, names, 2)

	// Overwrite replaces the whole blob.
	require.NoError(t, store.Put(ctx, "events/1/a.blk", []byte("v2")))
	data, err = ReadAll(ctx, store, "events/1/a.blk")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	require.NoError(t, store.Delete(ctx, "events/1/a.blk"))
	_, err = store.Open(ctx, "events/1/a.blk")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing blob is not an error.
	assert.NoError(t, store.Delete(ctx, "events/1/a.blk"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	testStore(t, NewLocalStore(t.TempDir()))
}
