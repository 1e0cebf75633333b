package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10*time.Second, cfg.Duration)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Zero(t, cfg.Rate)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "duration only", config: &Config{Duration: time.Second, Concurrency: 1}},
		{name: "requests only", config: &Config{Requests: 10, Concurrency: 1}},
		{name: "neither duration nor requests", config: &Config{Concurrency: 1}, wantErr: true},
		{name: "negative duration", config: &Config{Duration: -time.Second, Concurrency: 1}, wantErr: true},
		{name: "negative requests", config: &Config{Requests: -1, Concurrency: 1}, wantErr: true},
		{name: "negative rate", config: &Config{Requests: 1, Rate: -1, Concurrency: 1}, wantErr: true},
		{name: "zero concurrency", config: &Config{Requests: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		input   string
		want    Thresholds
		wantErr bool
	}{
		{input: "", want: Thresholds{}},
		{input: "p95<200ms", want: Thresholds{P95: 200 * time.Millisecond}},
		{input: "p50<=50ms, p99<1s", want: Thresholds{P50: 50 * time.Millisecond, P99: time.Second}},
		{input: "max<2s", want: Thresholds{Max: 2 * time.Second}},
		{input: "errors<0.5%", want: Thresholds{ErrorRate: 0.005}},
		{input: "errorrate<0.01", want: Thresholds{ErrorRate: 0.01}},
		{input: "rps>=50", want: Thresholds{MinRPS: 50}},
		{input: "p95>200ms", wantErr: true},
		{input: "rps<50", wantErr: true},
		{input: "p95<fast", wantErr: true},
		{input: "latency<1s", wantErr: true},
		{input: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseThresholds(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.ErrorRate, got.ErrorRate, 1e-9)
			got.ErrorRate, tt.want.ErrorRate = 0, 0
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholdsAny(t *testing.T) {
	assert.False(t, Thresholds{}.Any())
	assert.True(t, Thresholds{MinRPS: 1}.Any())
}
