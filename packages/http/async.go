package http

import "context"

// Pending is an in-flight or completed SendAsync call.
type Pending struct {
	done chan struct{}
	resp *Response
	err  error
}

// SendAsync runs Send on its own goroutine. The exchange cannot be
// cancelled once started.
func (s *Session) SendAsync(req *Request) *Pending {
	return s.SendAsyncContext(context.Background(), req)
}

// SendAsyncContext is SendAsync with a context handed to SendContext.
func (s *Session) SendAsyncContext(ctx context.Context, req *Request) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.resp, p.err = s.SendContext(ctx, req)
	}()
	return p
}

// Wait blocks until the send finishes.
func (p *Pending) Wait() (*Response, error) {
	<-p.done
	return p.resp, p.err
}

// Done is closed when the send finishes.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}
