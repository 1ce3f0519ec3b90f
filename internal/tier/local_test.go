package tier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLocalPutThenGet(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "sk1", []byte("hello"), 0))
	v, err := l.Get(ctx, "sk1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestLocalGetMissingReturnsNotFound(t *testing.T) {
	l := newTestLocal(t)
	_, err := l.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "sk1", []byte("v"), 0))
	require.NoError(t, l.Delete(ctx, "sk1"))
	require.NoError(t, l.Delete(ctx, "sk1"))

	_, err := l.Get(ctx, "sk1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalTTLExpiry(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "sk1", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := l.Get(ctx, "sk1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalEmptyValueRoundTrips(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "sk1", []byte{}, 0))
	v, err := l.Get(ctx, "sk1")
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestLocalStatsReportsTierName(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()
	require.NoError(t, l.Put(ctx, "sk1", []byte("some reasonably sized value"), 0))

	stats := l.Stats()
	require.Equal(t, "local", stats.Name)
}
