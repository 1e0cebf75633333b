package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/history"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

func jsonResponse(t *testing.T, body string) *http.Response {
	t.Helper()
	headers, err := http.HeadersFromLines("Content-Type: application/json", "X-Id: 7")
	require.NoError(t, err)
	return &http.Response{
		StatusCode: 201,
		Reason:     "Created",
		Proto:      "HTTP/1.1",
		URL:        "http://example.test/items",
		Headers:    headers,
		Body:       []byte(body),
		Elapsed:    12 * time.Millisecond,
	}
}

func sampleRun() *Run {
	return &Run{
		Source: "api.yaml",
		Results: []Result{
			{Name: "ok", Method: "GET", URL: "http://example.test", Duration: time.Millisecond,
				Checks: []Check{{Subject: "status", Expected: 200, Actual: 200, Passed: true}}},
			{Name: "wrong status", Method: "GET", URL: "http://example.test",
				Checks: []Check{{Subject: "status", Expected: 200, Actual: 404, Passed: false}}},
			{Name: "down", Method: "GET", URL: "http://example.test",
				Err: fmt.Errorf("send: %w", http.ErrConnection)},
		},
		Duration: 5 * time.Millisecond,
	}
}

func TestRunCounts(t *testing.T) {
	passed, failed, errored := sampleRun().Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, errored)
}

func TestConsoleFormatter_Response(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResponse(jsonResponse(t, `{"id":1}`))

	out := buf.String()
	assert.Contains(t, out, "HTTP/1.1 201 Created")
	assert.Contains(t, out, "(12ms)")
	assert.Contains(t, out, "X-Id: 7")
	assert.Contains(t, out, `"id": 1`)
}

func TestConsoleFormatter_BodyOnly(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithBodyOnly(true))
	f.FormatResponse(jsonResponse(t, `{"id":1}`))
	assert.Equal(t, `{"id":1}`, buf.String())
}

func TestConsoleFormatter_BinaryAndTruncated(t *testing.T) {
	headers, err := http.HeadersFromLines("Content-Type: application/octet-stream")
	require.NoError(t, err)

	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResponse(&http.Response{
		StatusCode: 200, Proto: "HTTP/1.1", Reason: "OK",
		Headers: headers, Body: []byte{0, 1, 2}, Truncated: true,
	})

	out := buf.String()
	assert.Contains(t, out, "[binary body, 3 bytes]")
	assert.Contains(t, out, "body truncated at 3 bytes")
}

func TestConsoleFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatRun(sampleRun())

	out := buf.String()
	assert.Contains(t, out, "Sending: api.yaml")
	assert.Contains(t, out, "✓ ok")
	assert.Contains(t, out, "✗ wrong status")
	assert.Contains(t, out, "Expected: 200")
	assert.Contains(t, out, "Actual:   404")
	assert.Contains(t, out, "x down")
	assert.Contains(t, out, "1 passed, 1 failed, 1 errored, 3 total")
}

func TestConsoleFormatter_StatsAndHistory(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatStats("bench", http.Stats{Requests: 4, P95: 3 * time.Millisecond})
	f.FormatHistory([]history.Entry{
		{Method: "GET", URL: "http://a.test", Status: 200, Elapsed: 2 * time.Millisecond, CreatedAt: time.Now()},
		{Method: "POST", URL: "http://b.test", ErrorKind: "timeout", CreatedAt: time.Now()},
	})

	out := buf.String()
	assert.Contains(t, out, "requests  4")
	assert.Contains(t, out, "p95       3ms")
	assert.Contains(t, out, "http://a.test 200 2ms")
	assert.Contains(t, out, "http://b.test timeout")
}

func TestConsoleFormatter_ErrorKind(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatError(fmt.Errorf("get: %w", http.ErrTimeout))
	f.FormatError(errors.New("plain"))

	out := buf.String()
	assert.Contains(t, out, "Error (timeout): get: timeout")
	assert.Contains(t, out, "Error: plain")
}

func TestJSONFormatter_Response(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	require.NoError(t, f.FormatResponse(jsonResponse(t, `{"id":1}`)))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(201), got["statusCode"])
	assert.Equal(t, map[string]any{"id": float64(1)}, got["body"])
}

func TestJSONFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatRun(sampleRun())
	require.NoError(t, f.Flush(time.Second))

	var got JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, JSONSummary{Total: 3, Passed: 1, Failed: 1, Errored: 1}, got.Summary)
	assert.Equal(t, "connection error", got.Requests[2].Kind)
	assert.Equal(t, float64(1000), got.Duration)
}

func TestJUnitFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatRun(sampleRun())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "<?xml"))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	require.Len(t, suites.TestSuites, 1)
	cases := suites.TestSuites[0].TestCases
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Contains(t, cases[1].Failure.Content, "expected 200, got 404")
	require.NotNil(t, cases[2].Error)
	assert.Equal(t, "connection error", cases[2].Error.Type)
}

func TestTAPFormatter_Run(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatRun(sampleRun())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.Contains(t, out, "TAP version 13\n1..3\n")
	assert.Contains(t, out, "ok 1 - ok\n")
	assert.Contains(t, out, "not ok 2 - wrong status\n")
	assert.Contains(t, out, `- "status: expected 200, got 404"`)
	assert.Contains(t, out, "not ok 3 - down\n")
	assert.Contains(t, out, "severity: error")
}

func TestEscapeYAML(t *testing.T) {
	assert.Equal(t, "plain", escapeYAML("plain"))
	assert.Equal(t, `"a: \"b\""`, escapeYAML(`a: "b"`))
}
