package bench

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// maxLatencyUs bounds the histogram at ten minutes.
const maxLatencyUs = 600_000_000

// Metrics aggregates the outcome of every send in a run.
type Metrics struct {
	mu sync.Mutex

	total     int64
	failed    int64
	bytes     int64
	histogram *hdrhistogram.Histogram
	// keyed by error kind, "http error" for statuses of 400 and above
	errors map[string]int64
	// keyed by status class, "2xx"
	statuses map[string]int64

	start time.Time
	end   time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(1, maxLatencyUs, 3),
		errors:    make(map[string]int64),
		statuses:  make(map[string]int64),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.start = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.end = time.Now()
	m.mu.Unlock()
}

// Record accounts one send. A response with a status of 400 or above
// counts as a failure.
func (m *Metrics) Record(resp *http.Response, err error, d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	_ = m.histogram.RecordValue(us)

	if resp != nil && resp.StatusCode > 0 {
		m.statuses[fmt.Sprintf("%dxx", resp.StatusCode/100)]++
		m.bytes += int64(len(resp.Body))
	}

	switch {
	case err != nil:
		m.failed++
		m.errors[errorLabel(err)]++
	case resp != nil && resp.StatusCode >= 400:
		m.failed++
		m.errors[http.ErrHTTP.Error()]++
	}
}

func errorLabel(err error) string {
	if kind := http.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "other"
}

// Summary is the aggregate view of a run, complete or in progress.
type Summary struct {
	Duration  time.Duration
	Total     int64
	Succeeded int64
	Failed    int64
	Bytes     int64

	RPS       float64
	ErrorRate float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Errors   map[string]int64
	Statuses map[string]int64
}

// Summary returns the aggregate so far. Before Stop the duration runs up
// to now.
func (m *Metrics) Summary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := m.end
	if end.IsZero() {
		end = time.Now()
	}
	s := &Summary{
		Duration:  end.Sub(m.start),
		Total:     m.total,
		Succeeded: m.total - m.failed,
		Failed:    m.failed,
		Bytes:     m.bytes,
		Errors:    make(map[string]int64, len(m.errors)),
		Statuses:  make(map[string]int64, len(m.statuses)),
	}
	for k, v := range m.errors {
		s.Errors[k] = v
	}
	for k, v := range m.statuses {
		s.Statuses[k] = v
	}

	if m.total == 0 {
		return s
	}
	if secs := s.Duration.Seconds(); secs > 0 {
		s.RPS = float64(m.total) / secs
	}
	s.ErrorRate = float64(m.failed) / float64(m.total)

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	s.P50 = us(m.histogram.ValueAtQuantile(50))
	s.P95 = us(m.histogram.ValueAtQuantile(95))
	s.P99 = us(m.histogram.ValueAtQuantile(99))
	s.Min = us(m.histogram.Min())
	s.Max = us(m.histogram.Max())
	s.Mean = time.Duration(m.histogram.Mean() * float64(time.Microsecond))
	s.StdDev = time.Duration(m.histogram.StdDev() * float64(time.Microsecond))
	return s
}

// Evaluate checks s against every threshold set in t.
func (s *Summary) Evaluate(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "<= " + limit.String(),
			Actual:   actual.String(),
		})
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max", t.Max, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "<= " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}
	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "rps",
			Passed:   s.RPS >= t.MinRPS,
			Expected: ">= " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}
	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
