package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// throttle is an http.RoundTripper that waits on a token bucket before
// every outbound exchange, redirects and digest retries included.
type throttle struct {
	limiter *rate.Limiter
	next    http.RoundTripper
	logger  *slog.Logger
}

// newLimiter builds the token bucket shared by every exchange of a session.
func newLimiter(rps float64, burst int) (*rate.Limiter, error) {
	if rps <= 0 || burst <= 0 {
		return nil, newError(ErrInvalidArgument, "throttle", fmt.Sprintf("rps[%g] and burst[%d] must be greater than zero", rps, burst), nil)
	}
	return rate.NewLimiter(rate.Limit(rps), burst), nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	if err := t.limiter.Wait(r.Context()); err != nil {
		return nil, fmt.Errorf("throttle wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		t.logger.Debug("throttle wait complete", "waited", waited.String(), "host", r.URL.Host)
	}
	return t.next.RoundTrip(r)
}
