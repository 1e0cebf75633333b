package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter handles terminal output for a run
type Reporter struct {
	writer     io.Writer
	noProgress bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		if noColor {
			color.NoColor = true
		}
	}
}

// WithNoProgress disables the live progress line
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Header prints the target and load shape.
func (r *Reporter) Header(method, target string, cfg *Config) {
	r.bold.Fprintf(r.writer, "Benchmarking %s %s\n", method, target)

	var details []string
	if cfg.Rate > 0 {
		details = append(details, fmt.Sprintf("Rate: %s req/s", formatFloat(cfg.Rate)))
	} else {
		details = append(details, "Rate: unlimited")
	}
	if cfg.Duration > 0 {
		details = append(details, "Duration: "+formatDuration(cfg.Duration))
	}
	if cfg.Requests > 0 {
		details = append(details, fmt.Sprintf("Requests: %d", cfg.Requests))
	}
	details = append(details, fmt.Sprintf("Sessions: %d", cfg.Concurrency))
	fmt.Fprintf(r.writer, "%s\n\n", strings.Join(details, " | "))
}

// Progress rewrites a single status line.
func (r *Reporter) Progress(s *Summary) {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")
	fmt.Fprintf(r.writer, "%s  %s req  %s req/s  p95 %s",
		formatDuration(s.Duration),
		formatNumber(s.Total),
		r.cyan.Sprintf("%.1f", s.RPS),
		formatLatency(s.P95))
	if s.Failed > 0 {
		fmt.Fprintf(r.writer, "  %s", r.red.Sprintf("%s failed", formatNumber(s.Failed)))
	}
}

// ClearProgress clears the progress line
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\r\033[K")
}

// Summary prints the final result
func (r *Reporter) Summary(res *Result) {
	s := res.Summary

	r.bold.Fprintln(r.writer, "SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))
	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprintf(r.writer, "Requests:   %s (%.1f req/s)\n", r.bold.Sprint(formatNumber(s.Total)), s.RPS)
	fmt.Fprintf(r.writer, "Succeeded:  %s\n", r.green.Sprint(formatNumber(s.Succeeded)))
	failed := formatNumber(s.Failed)
	if s.Failed > 0 {
		failed = r.red.Sprint(failed)
	}
	fmt.Fprintf(r.writer, "Failed:     %s (%.1f%%)\n", failed, s.ErrorRate*100)
	fmt.Fprintf(r.writer, "Received:   %s bytes\n", formatNumber(s.Bytes))

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY")
	fmt.Fprintf(r.writer, "  p50: %-7s p95: %-7s p99: %-7s max: %s\n",
		formatLatency(s.P50), formatLatency(s.P95), formatLatency(s.P99), formatLatency(s.Max))
	fmt.Fprintf(r.writer, "  min: %-7s mean: %-6s stddev: %s\n",
		formatLatency(s.Min), formatLatency(s.Mean), formatLatency(s.StdDev))

	if len(s.Statuses) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "STATUS CODES")
		for _, k := range sortedKeys(s.Statuses) {
			fmt.Fprintf(r.writer, "  %s: %s\n", k, formatNumber(s.Statuses[k]))
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "ERRORS")
		for _, k := range sortedKeys(s.Errors) {
			fmt.Fprintf(r.writer, "  %s: %s\n", r.yellow.Sprint(k), formatNumber(s.Errors[k]))
		}
	}

	if len(res.Thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range res.Thresholds {
			mark := r.green.Sprint("✓")
			if !tr.Passed {
				mark = r.red.Sprint("✗")
			}
			fmt.Fprintf(r.writer, "  %s %s %s (actual: %s)\n", mark, tr.Name, tr.Expected, tr.Actual)
		}
	}
	fmt.Fprintln(r.writer)
}

// JSON writes the result as a JSON document.
func (r *Reporter) JSON(res *Result) error {
	s := res.Summary
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

	output := map[string]any{
		"duration": s.Duration.String(),
		"passed":   res.Passed,
		"requests": map[string]any{
			"total":     s.Total,
			"succeeded": s.Succeeded,
			"failed":    s.Failed,
			"bytes":     s.Bytes,
		},
		"rates": map[string]any{
			"rps":       s.RPS,
			"errorRate": s.ErrorRate,
		},
		"latencyMs": map[string]any{
			"p50":    ms(s.P50),
			"p95":    ms(s.P95),
			"p99":    ms(s.P99),
			"min":    ms(s.Min),
			"max":    ms(s.Max),
			"mean":   ms(s.Mean),
			"stddev": ms(s.StdDev),
		},
		"statuses": s.Statuses,
		"errors":   s.Errors,
	}
	if len(res.Thresholds) > 0 {
		output["thresholds"] = res.Thresholds
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	if seconds := int(d.Seconds()) % 60; seconds != 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%dm", minutes)
}

// formatLatency formats latency for display
func formatLatency(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatNumber groups thousands with commas
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
