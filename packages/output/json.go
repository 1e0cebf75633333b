package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Requests []JSONTest  `json:"requests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// JSONTest represents a single request result
type JSONTest struct {
	Name     string        `json:"name"`
	Source   string        `json:"source"`
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Passed   bool          `json:"passed"`
	Duration float64       `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Kind     string        `json:"kind,omitempty"`
	Response *JSONResponse `json:"response,omitempty"`
	Checks   []JSONCheck   `json:"checks,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Reason     string            `json:"reason,omitempty"`
	Proto      string            `json:"proto,omitempty"`
	URL        string            `json:"url"`
	History    []string          `json:"history,omitempty"`
	Headers    []string          `json:"headers,omitempty"`
	Cookies    map[string]string `json:"cookies,omitempty"`
	// Body is embedded verbatim when it is valid JSON, else as a string.
	Body      any     `json:"body,omitempty"`
	Truncated bool    `json:"truncated,omitempty"`
	Duration  float64 `json:"duration"`
}

// JSONCheck represents an expectation result
type JSONCheck struct {
	Subject  string `json:"subject"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats responses and runs as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func newJSONResponse(resp *http.Response) *JSONResponse {
	out := &JSONResponse{
		StatusCode: resp.StatusCode,
		Reason:     resp.Reason,
		Proto:      resp.Proto,
		URL:        resp.URL,
		History:    resp.History,
		Headers:    resp.Headers.All(),
		Truncated:  resp.Truncated,
		Duration:   float64(resp.Elapsed.Milliseconds()),
	}
	if resp.Cookies.Len() > 0 {
		out.Cookies = resp.Cookies.All()
	}
	if len(resp.Body) > 0 {
		if v, ok := resp.JSONSafe(); ok {
			out.Body = v
		} else if !resp.IsBinary() {
			out.Body = resp.Text()
		}
	}
	return out
}

// FormatResponse writes resp as a single JSON document.
func (f *JSONFormatter) FormatResponse(resp *http.Response) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newJSONResponse(resp))
}

func (f *JSONFormatter) FormatRun(run *Run) {
	for _, r := range run.Results {
		test := JSONTest{
			Name:     r.Name,
			Source:   run.Source,
			Method:   r.Method,
			URL:      r.URL,
			Passed:   r.Passed(),
			Duration: float64(r.Duration.Milliseconds()),
		}

		if r.Err != nil {
			test.Error = r.Err.Error()
			if kind := http.KindOf(r.Err); kind != nil {
				test.Kind = kind.Error()
			}
		}

		if r.Response != nil {
			test.Response = newJSONResponse(r.Response)
		}

		if len(r.Checks) > 0 {
			test.Checks = make([]JSONCheck, len(r.Checks))
			for i, c := range r.Checks {
				test.Checks[i] = JSONCheck{
					Subject:  c.Subject,
					Expected: c.Expected,
					Actual:   c.Actual,
					Passed:   c.Passed,
					Message:  c.Message,
				}
			}
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, errored int
	for _, t := range f.results {
		switch {
		case t.Error != "":
			errored++
		case t.Passed:
			passed++
		default:
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Errored: errored,
		},
		Requests: f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
