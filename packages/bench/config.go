// Package bench replays one request through a session pool, optionally
// rate limited, and summarizes latency, throughput and failures.
package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the load shape of a benchmark. At least one of Duration
// and Requests must be set; the run stops at whichever comes first.
type Config struct {
	Duration time.Duration
	Requests int
	// Rate is the target sends per second. Zero sends as fast as the pool
	// hands out sessions.
	Rate        float64
	Concurrency int
	// ProgressInterval is how often the progress callback fires. Zero
	// disables it.
	ProgressInterval time.Duration
	Thresholds       Thresholds
}

// DefaultConfig returns a 10 second run over four sessions.
func DefaultConfig() *Config {
	return &Config{
		Duration:         10 * time.Second,
		Concurrency:      4,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	switch {
	case c.Duration < 0:
		return fmt.Errorf("duration cannot be negative")
	case c.Requests < 0:
		return fmt.Errorf("requests cannot be negative")
	case c.Duration == 0 && c.Requests == 0:
		return fmt.Errorf("either duration or requests must be set")
	case c.Rate < 0:
		return fmt.Errorf("rate cannot be negative")
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

// Thresholds are the pass/fail criteria of a run. Zero fields are not
// checked.
type Thresholds struct {
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	ErrorRate float64 // 0.0 - 1.0
	MinRPS    float64
}

// Any reports whether at least one threshold is set.
func (t Thresholds) Any() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.Max > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a comma separated list such as
// "p95<200ms,errors<0.1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThreshold(part, &t); err != nil {
			return Thresholds{}, err
		}
	}
	return t, nil
}

func parseThreshold(part string, t *Thresholds) error {
	m := thresholdPattern.FindStringSubmatch(part)
	if m == nil {
		return fmt.Errorf("invalid threshold format: %s", part)
	}
	metric, upperBound, value := strings.ToLower(m[1]), m[2][0] == '<', strings.TrimSpace(m[3])

	switch metric {
	case "p50", "p95", "p99", "max":
		if !upperBound {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, value)
		}
		switch metric {
		case "p50":
			t.P50 = d
		case "p95":
			t.P95 = d
		case "p99":
			t.P99 = d
		default:
			t.Max = d
		}

	case "errors", "errorrate":
		if !upperBound {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		percent := strings.HasSuffix(value, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", value)
		}
		if percent {
			f /= 100
		}
		t.ErrorRate = f

	case "rps":
		if upperBound {
			return fmt.Errorf("rps threshold must use > or >=")
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rps: %s", value)
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}
	return nil
}
