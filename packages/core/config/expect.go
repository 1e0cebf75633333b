package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqx/packages/http"
	"github.com/abdul-hamid-achik/reqx/packages/output"
)

// Expect holds optional checks on the response.
//
//	expect:
//	  status: 200
//	  headers:
//	    Content-Type: application/json
//	  json:
//	    items.#: 3
//	    items.0.name: widget
//	  contains: widget
//	  maxDuration: 500
//	  schema: item.schema.json
type Expect struct {
	Status int `yaml:"status,omitempty" validate:"omitempty,gte=100,lte=599"`
	// Headers match when the response header contains the value.
	Headers map[string]string `yaml:"headers,omitempty"`
	// JSON maps gjson paths to expected values.
	JSON        map[string]any `yaml:"json,omitempty"`
	Contains    string         `yaml:"contains,omitempty"`
	MaxDuration int            `yaml:"maxDuration,omitempty" validate:"gte=0"` // milliseconds
	Schema      string         `yaml:"schema,omitempty"`                       // JSON schema file
}

// Check evaluates the file's expectations against resp. A schema file that
// cannot be read is returned as an error rather than a failed check.
func (rf *RequestFile) Check(resp *http.Response) ([]output.Check, error) {
	e := rf.Expect
	if e == nil {
		return nil, nil
	}

	var checks []output.Check

	if e.Status != 0 {
		checks = append(checks, output.Check{
			Subject:  "status",
			Expected: e.Status,
			Actual:   resp.StatusCode,
			Passed:   resp.StatusCode == e.Status,
		})
	}

	for _, name := range sortedKeys(e.Headers) {
		want := e.Headers[name]
		got, ok := resp.Headers.Get(name)
		checks = append(checks, output.Check{
			Subject:  "header " + name,
			Expected: want,
			Actual:   got,
			Passed:   ok && strings.Contains(got, want),
		})
	}

	for _, path := range sortedKeys(e.JSON) {
		want := e.JSON[path]
		c := output.Check{Subject: "json " + path, Expected: want}
		if got := resp.Get(path); got.Exists() {
			c.Actual = got.Value()
			c.Passed = fmt.Sprint(got.Value()) == fmt.Sprint(want)
		} else {
			c.Message = "path not found"
		}
		checks = append(checks, c)
	}

	if e.Contains != "" {
		checks = append(checks, output.Check{
			Subject:  "body contains",
			Expected: e.Contains,
			Actual:   fmt.Sprintf("%d bytes", len(resp.Body)),
			Passed:   strings.Contains(resp.Text(), e.Contains),
		})
	}

	if e.MaxDuration > 0 {
		limit := time.Duration(e.MaxDuration) * time.Millisecond
		checks = append(checks, output.Check{
			Subject:  "duration",
			Expected: "<= " + limit.String(),
			Actual:   resp.Elapsed.Round(time.Millisecond).String(),
			Passed:   resp.Elapsed <= limit,
		})
	}

	if e.Schema != "" {
		schema, err := os.ReadFile(rf.SchemaPath())
		if err != nil {
			return checks, fmt.Errorf("reading schema: %w", err)
		}
		c := output.Check{Subject: "schema", Expected: e.Schema, Actual: "valid", Passed: true}
		if err := resp.ValidateSchema(schema); err != nil {
			c.Actual = "invalid"
			c.Passed = false
			c.Message = err.Error()
		}
		checks = append(checks, c)
	}

	return checks, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
