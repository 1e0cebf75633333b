package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool hands out exclusively owned sessions, at most max at a time.
// Sessions are created lazily with the pool's options and reset before
// they are handed out again.
type Pool struct {
	opts []Option

	tokens chan struct{}
	idle   chan *Session

	mu     sync.Mutex
	inUse  map[*Session]struct{}
	closed bool
}

// NewPool creates a pool of up to max sessions. max below 1 means 1.
func NewPool(max int, opts ...Option) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{
		opts:   opts,
		tokens: make(chan struct{}, max),
		idle:   make(chan *Session, max),
		inUse:  make(map[*Session]struct{}),
	}
}

// Acquire blocks until a session is free or the pool can grow, or ctx is
// done.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquiring session: %w", err)
	}
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquiring session: %w", ctx.Err())
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		<-p.tokens
		return nil, newError(ErrInvalidRequest, "acquire", "pool is closed", nil)
	}

	var s *Session
	select {
	case s = <-p.idle:
	default:
		var err error
		if s, err = NewSession(p.opts...); err != nil {
			<-p.tokens
			return nil, err
		}
	}

	p.mu.Lock()
	p.inUse[s] = struct{}{}
	p.mu.Unlock()
	return s, nil
}

// Release resets s and makes it available again. Sessions this pool did
// not hand out are ignored.
func (p *Pool) Release(s *Session) {
	p.mu.Lock()
	if _, ok := p.inUse[s]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, s)
	closed := p.closed
	p.mu.Unlock()

	if closed || !s.IsValid() {
		_ = s.Close()
	} else {
		s.Reset()
		p.idle <- s
	}
	<-p.tokens
}

// Size returns the number of live sessions, idle or checked out.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse) + len(p.idle)
}

// Available returns the number of idle sessions.
func (p *Pool) Available() int {
	return len(p.idle)
}

// Close closes every idle session. Checked out sessions are closed when
// released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case s := <-p.idle:
			if err := s.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
