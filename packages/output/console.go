package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/reqx/packages/history"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<none>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case []byte:
		v = string(val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	// bodyOnly prints just the response body, for piping
	bodyOnly bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func WithBodyOnly(b bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.bodyOnly = b
	}
}

// statusColor picks the color for a status code class.
func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgYellow, color.Bold)
	case code >= 300:
		return color.New(color.FgCyan, color.Bold)
	default:
		return color.New(color.FgGreen, color.Bold)
	}
}

// FormatResponse prints the status line, headers and body of resp.
func (f *ConsoleFormatter) FormatResponse(resp *http.Response) {
	if f.bodyOnly {
		_, _ = f.writer.Write(resp.Body)
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	status := fmt.Sprintf("%s %d %s", resp.Proto, resp.StatusCode, resp.Reason)
	fmt.Fprintf(f.writer, "%s %s\n", statusColor(resp.StatusCode).Sprint(strings.TrimSpace(status)),
		cyan(fmt.Sprintf("(%dms)", resp.Elapsed.Milliseconds())))

	if resp.Redirected {
		for _, hop := range resp.History {
			fmt.Fprintf(f.writer, "%s %s\n", faint("→"), faint(hop))
		}
	}

	if f.verbose && resp.RequestHeaders.Len() > 0 {
		for _, line := range resp.RequestHeaders.All() {
			fmt.Fprintf(f.writer, "%s %s\n", faint(">"), faint(line))
		}
	}
	for _, line := range resp.Headers.All() {
		name, value, _ := strings.Cut(line, ":")
		fmt.Fprintf(f.writer, "%s:%s\n", cyan(name), value)
	}
	fmt.Fprintln(f.writer)

	switch {
	case len(resp.Body) == 0:
	case resp.IsBinary():
		fmt.Fprintf(f.writer, "%s\n", faint(fmt.Sprintf("[binary body, %d bytes]", len(resp.Body))))
	case resp.IsJSON():
		body := pretty.Pretty(resp.Body)
		if !color.NoColor {
			body = pretty.Color(body, nil)
		}
		_, _ = f.writer.Write(body)
	default:
		fmt.Fprintln(f.writer, resp.Text())
	}

	if resp.Truncated {
		fmt.Fprintf(f.writer, "%s\n", yellow(fmt.Sprintf("body truncated at %d bytes", len(resp.Body))))
	}
}

// FormatRun prints one line per result followed by a summary.
func (f *ConsoleFormatter) FormatRun(run *Run) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Sending: "+run.Source))

	for _, r := range run.Results {
		if r.Err != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Err)))
			continue
		}

		symbol := green("✓")
		if !r.Passed() {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		if f.verbose && r.Response != nil {
			fmt.Fprintf(f.writer, "    %s %s → %d\n", r.Method, r.URL, r.Response.StatusCode)
		}

		for _, c := range r.Checks {
			if c.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "    %s %s\n", red("→"), c.Subject)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(c.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(c.Actual, 100))
			if c.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", c.Message)
			}
		}
	}

	passed, failed, errored := run.Counts()
	fmt.Fprintf(f.writer, "\nRequests: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", errored)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(run.Results))
	fmt.Fprintf(f.writer, "Time:     %dms\n\n", run.Duration.Milliseconds())
}

// FormatStats prints a latency summary.
func (f *ConsoleFormatter) FormatStats(label string, st http.Stats) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s\n", bold(label))
	fmt.Fprintf(f.writer, "  requests  %d\n", st.Requests)
	fmt.Fprintf(f.writer, "  total     %s\n", st.TotalTime)
	fmt.Fprintf(f.writer, "  average   %s\n", st.Average)
	fmt.Fprintf(f.writer, "  p50       %s\n", st.P50)
	fmt.Fprintf(f.writer, "  p95       %s\n", st.P95)
	fmt.Fprintf(f.writer, "  p99       %s\n", st.P99)
	fmt.Fprintf(f.writer, "  max       %s\n", st.Max)
}

// FormatHistory prints recorded exchanges, one per line.
func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) {
	faint := color.New(color.Faint).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, e := range entries {
		ts := faint(e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if e.Status == 0 {
			fmt.Fprintf(f.writer, "%s %-7s %s %s\n", ts, e.Method, e.URL, red(e.ErrorKind))
			continue
		}
		fmt.Fprintf(f.writer, "%s %-7s %s %s %s\n", ts, e.Method, e.URL,
			statusColor(e.Status).Sprint(e.Status), faint(fmt.Sprintf("%dms", e.Elapsed.Milliseconds())))
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	if kind := http.KindOf(err); kind != nil {
		fmt.Fprintf(f.writer, "%s %v\n", red("Error ("+kind.Error()+"):"), err)
		return
	}
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("reqx"), version)
}
