package tier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFSBlob(t *testing.T) *FSBlob {
	t.Helper()
	b, err := NewFSBlob(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestFSBlobPutThenGet(t *testing.T) {
	b := newTestFSBlob(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "sk1", []byte("hello")))
	v, err := b.Get(ctx, "sk1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestFSBlobGetMissingReturnsNotFound(t *testing.T) {
	b := newTestFSBlob(t)
	_, err := b.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSBlobDeleteIsIdempotent(t *testing.T) {
	b := newTestFSBlob(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "sk1", []byte("v")))
	require.NoError(t, b.Delete(ctx, "sk1"))
	require.NoError(t, b.Delete(ctx, "sk1"))

	_, err := b.Get(ctx, "sk1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFSBlobOverwrite(t *testing.T) {
	b := newTestFSBlob(t)
	ctx := context.Background()

	require.NoError(t, b.Put(ctx, "sk1", []byte("first")))
	require.NoError(t, b.Put(ctx, "sk1", []byte("second")))

	v, err := b.Get(ctx, "sk1")
	require.NoError(t, err)
	require.Equal(t, []byte("second"), v)
}
