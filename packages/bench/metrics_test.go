package bench

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Record(&http.Response{StatusCode: 200, Body: []byte("ok")}, nil, 10*time.Millisecond)
	m.Record(&http.Response{StatusCode: 204}, nil, 20*time.Millisecond)
	m.Record(&http.Response{StatusCode: 503}, nil, 30*time.Millisecond)
	m.Record(nil, fmt.Errorf("send: %w", http.ErrTimeout), 40*time.Millisecond)
	m.Stop()

	s := m.Summary()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Succeeded)
	assert.Equal(t, int64(2), s.Failed)
	assert.Equal(t, int64(2), s.Bytes)
	assert.InDelta(t, 0.5, s.ErrorRate, 1e-9)
	assert.Equal(t, map[string]int64{"2xx": 2, "5xx": 1}, s.Statuses)
	assert.Equal(t, map[string]int64{"http error": 1, "timeout": 1}, s.Errors)

	assert.InDelta(t, float64(10*time.Millisecond), float64(s.Min), float64(100*time.Microsecond))
	assert.InDelta(t, float64(40*time.Millisecond), float64(s.Max), float64(100*time.Microsecond))
	assert.InDelta(t, float64(25*time.Millisecond), float64(s.Mean), float64(100*time.Microsecond))
}

func TestMetricsEmptySummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	s := m.Summary()

	assert.Zero(t, s.Total)
	assert.Zero(t, s.RPS)
	assert.Zero(t, s.P99)
	assert.Empty(t, s.Errors)
}

func TestSummaryEvaluate(t *testing.T) {
	s := &Summary{
		P50:       10 * time.Millisecond,
		P95:       80 * time.Millisecond,
		P99:       300 * time.Millisecond,
		Max:       time.Second,
		ErrorRate: 0.25,
		RPS:       40,
	}

	results := s.Evaluate(Thresholds{
		P95:       100 * time.Millisecond,
		P99:       200 * time.Millisecond,
		ErrorRate: 0.3,
		MinRPS:    50,
	})
	require.Len(t, results, 4)

	byName := make(map[string]ThresholdResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["p95"].Passed)
	assert.False(t, byName["p99"].Passed)
	assert.Equal(t, "300ms", byName["p99"].Actual)
	assert.True(t, byName["error rate"].Passed)
	assert.Equal(t, "25%", byName["error rate"].Actual)
	assert.False(t, byName["rps"].Passed)
	assert.Equal(t, ">= 50", byName["rps"].Expected)
}
