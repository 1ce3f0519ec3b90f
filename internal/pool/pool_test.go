package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     int
	closed atomic.Bool
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

func dialCounter(dialed *atomic.Int64) Dialer {
	return func(ctx context.Context, addr string) (Conn, error) {
		id := int(dialed.Add(1))
		return &fakeConn{id: id}, nil
	}
}

func TestAcquireDialsWhenIdleEmpty(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 2, dialCounter(&dialed))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c)
	require.EqualValues(t, 1, dialed.Load())
}

func TestReleaseReusesConnection(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 2, dialCounter(&dialed))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Same(t, c, c2)
	require.EqualValues(t, 1, dialed.Load())
}

func TestDropDoesNotReuseConnection(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 2, dialCounter(&dialed))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Drop(c)
	require.True(t, c.(*fakeConn).closed.Load())

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotSame(t, c, c2)
	require.EqualValues(t, 2, dialed.Load())
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 1, dialCounter(&dialed))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Error(t, err, "second acquire should block until release and time out")

	p.Release(c)
	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c2)
}

func TestCloseDrainsIdleConnections(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 2, dialCounter(&dialed))

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)

	require.NoError(t, p.Close())
	require.True(t, c.(*fakeConn).closed.Load())

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
}

func TestManagerEnsureIsIdempotentPerAddr(t *testing.T) {
	var dialed atomic.Int64
	m := NewManager(4, dialCounter(&dialed))

	p1 := m.Ensure("a:9000")
	p2 := m.Ensure("a:9000")
	require.Same(t, p1, p2)

	p3 := m.Ensure("b:9000")
	require.NotSame(t, p1, p3)
}

func TestManagerRemoveClosesPool(t *testing.T) {
	var dialed atomic.Int64
	m := NewManager(4, dialCounter(&dialed))

	p := m.Ensure("a:9000")
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)

	require.NoError(t, m.Remove("a:9000"))
	require.True(t, c.(*fakeConn).closed.Load())
	require.Nil(t, m.Get("a:9000"))
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	var dialed atomic.Int64
	p := New("n1:9000", 4, dialCounter(&dialed))

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			c, err := p.Acquire(ctx)
			if err != nil {
				errs <- err
				return
			}
			p.Release(c)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestDialerErrorReleasesSemaphoreSlot(t *testing.T) {
	boom := fmt.Errorf("dial failed")
	p := New("n1:9000", 1, func(ctx context.Context, addr string) (Conn, error) {
		return nil, boom
	})

	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, boom)

	// The failed acquire must have released its semaphore slot, or this
	// second attempt (also failing) would instead block and time out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, boom)
}
