package http

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Stats is a snapshot of a session's request accounting.
type Stats struct {
	Requests  int64
	TotalTime time.Duration
	Average   time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
}

// stats counts every attempted send, successful or not.
type stats struct {
	mu        sync.Mutex
	count     int64
	totalTime time.Duration
	// microseconds, 1us to 10m at 3 significant digits
	histogram *hdrhistogram.Histogram
}

func newStats() *stats {
	return &stats{histogram: hdrhistogram.New(1, 600_000_000, 3)}
}

func (s *stats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.totalTime += d
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	_ = s.histogram.RecordValue(us)
}

func (s *stats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.totalTime = 0
	s.histogram.Reset()
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Stats{Requests: s.count, TotalTime: s.totalTime}
	if s.count == 0 {
		return out
	}
	out.Average = s.totalTime / time.Duration(s.count)
	out.P50 = time.Duration(s.histogram.ValueAtQuantile(50)) * time.Microsecond
	out.P95 = time.Duration(s.histogram.ValueAtQuantile(95)) * time.Microsecond
	out.P99 = time.Duration(s.histogram.ValueAtQuantile(99)) * time.Microsecond
	out.Max = time.Duration(s.histogram.Max()) * time.Microsecond
	return out
}
