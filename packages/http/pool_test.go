package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AcquireRelease(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 0, p.Available())

	p.Release(a)
	assert.Equal(t, 1, p.Available())

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, c, "idle sessions are reused")
	assert.Equal(t, 2, p.Size())
}

func TestPool_AcquireBlocksAtCapacity(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan *Session, 1)
	go func() {
		next, err := p.Acquire(context.Background())
		assert.NoError(t, err)
		got <- next
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(s)

	select {
	case next := <-got:
		assert.Same(t, s, next)
	case <-time.After(2 * time.Second):
		t.Fatal("acquire did not unblock after release")
	}
}

func TestPool_ReleaseResetsSession(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defaults, _ := HeadersFromLines("X-Tenant: a")
	s.SetDefaultHeaders(defaults)
	s.SetConnectTimeout(time.Second)

	p.Release(s)
	s, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s.Settings())
	assert.Equal(t, 0, s.defaultHeaders.Len())
}

func TestPool_ReleaseUnknownSessionIsNoop(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	stranger, err := NewSession()
	require.NoError(t, err)
	defer stranger.Close()

	p.Release(stranger)
	assert.Equal(t, 0, p.Size())
	assert.Equal(t, 0, p.Available())

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(s)
	p.Release(s)
	assert.Equal(t, 1, p.Available())
}

func TestPool_Close(t *testing.T) {
	p := NewPool(2)

	idle, err := p.Acquire(context.Background())
	require.NoError(t, err)
	busy, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(idle)

	require.NoError(t, p.Close())
	assert.False(t, idle.IsValid())
	assert.True(t, busy.IsValid())

	p.Release(busy)
	assert.False(t, busy.IsValid())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPool_ZeroMaxMeansOne(t *testing.T) {
	p := NewPool(0)
	defer p.Close()

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.Error(t, err)
}

func TestPool_ConcurrentSends(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewPool(3)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer p.Release(s)
			resp, err := s.Get(server.URL)
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, p.Size(), 3)
}

func TestPool_OptionsApplied(t *testing.T) {
	p := NewPool(1, WithMaxConnsPerHost(9))
	defer p.Close()

	s, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, s.Settings().MaxConnsPerHost)

	s.SetMaxConnsPerHost(1)
	p.Release(s)
	s, err = p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, s.Settings().MaxConnsPerHost, "release restores the pool's options")
}
