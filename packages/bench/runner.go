package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// Runner replays one request through a session pool.
type Runner struct {
	config   *Config
	pool     *http.Pool
	request  *http.Request
	metrics  *Metrics
	log      *slog.Logger
	progress func(*Summary)
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithLogger sets the logger used for per-send debug output.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// WithProgress registers fn to receive a summary every
// Config.ProgressInterval while the run is in flight.
func WithProgress(fn func(*Summary)) RunnerOption {
	return func(r *Runner) {
		r.progress = fn
	}
}

// NewRunner checks cfg and req and returns a runner that sends req
// through pool. The pool is not closed by the runner.
func NewRunner(cfg *Config, pool *http.Pool, req *http.Request, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.BodyReader != nil {
		return nil, errors.New("a streamed request body cannot be replayed")
	}

	r := &Runner{
		config:  cfg,
		pool:    pool,
		request: req,
		metrics: NewMetrics(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Result holds the final result of a run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// Run sends until the duration elapses, the request count is reached or
// ctx is done. Sends already in flight when the duration elapses are
// allowed to finish; cancelling ctx aborts them.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	schedCtx := ctx
	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		schedCtx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if r.config.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.config.Rate), 1)
	}

	r.metrics.Start()

	progressDone := make(chan struct{})
	var progressWG sync.WaitGroup
	if r.progress != nil && r.config.ProgressInterval > 0 {
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			r.progressLoop(progressDone)
		}()
	}

	var wg sync.WaitGroup
	for sent := 0; r.config.Requests == 0 || sent < r.config.Requests; sent++ {
		if limiter != nil {
			if err := limiter.Wait(schedCtx); err != nil {
				break
			}
		}
		s, err := r.pool.Acquire(schedCtx)
		if err != nil {
			break
		}

		wg.Add(1)
		go func(s *http.Session) {
			defer wg.Done()
			defer r.pool.Release(s)

			start := time.Now()
			resp, err := s.SendContext(ctx, r.request.Clone())
			elapsed := time.Since(start)
			r.metrics.Record(resp, err, elapsed)
			if err != nil {
				r.log.Debug("bench send failed", "session", s.ID(), "error", err)
			}
		}(s)
	}
	wg.Wait()

	r.metrics.Stop()
	close(progressDone)
	progressWG.Wait()

	summary := r.metrics.Summary()
	result := &Result{Summary: summary, Passed: true}
	if r.config.Thresholds.Any() {
		result.Thresholds = summary.Evaluate(r.config.Thresholds)
		for _, tr := range result.Thresholds {
			if !tr.Passed {
				result.Passed = false
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) progressLoop(done <-chan struct{}) {
	ticker := time.NewTicker(r.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.progress(r.metrics.Summary())
		}
	}
}
