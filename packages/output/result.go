package output

import (
	"time"

	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// Check is one expectation evaluated against a response.
type Check struct {
	Subject  string
	Expected any
	Actual   any
	Passed   bool
	Message  string
}

// Result is one sent request with the checks run against its response.
type Result struct {
	Name     string
	Method   string
	URL      string
	Response *http.Response
	Err      error
	Checks   []Check
	Duration time.Duration
}

// Passed reports whether the request succeeded and every check held.
func (r *Result) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Run groups the results of one source, typically a request file or a
// directory of them.
type Run struct {
	Source   string
	Results  []Result
	Duration time.Duration
}

// Counts returns the number of passed, failed and errored results. A
// result with a transport error counts as errored, not failed.
func (r *Run) Counts() (passed, failed, errored int) {
	for i := range r.Results {
		switch {
		case r.Results[i].Err != nil:
			errored++
		case r.Results[i].Passed():
			passed++
		default:
			failed++
		}
	}
	return passed, failed, errored
}
