package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reqxhttp "github.com/abdul-hamid-achik/reqx/packages/http"
)

const itemSchema = `{
  "type": "object",
  "required": ["id", "name"],
  "properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
}`

func newJSONResponse(t *testing.T, status int, body string) *reqxhttp.Response {
	t.Helper()
	headers, err := reqxhttp.HeadersFromLines("Content-Type: application/json; charset=utf-8")
	require.NoError(t, err)
	return &reqxhttp.Response{
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(body),
		Elapsed:    40 * time.Millisecond,
	}
}

func TestRequestFile_Check_AllPass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "item.schema.json", itemSchema)
	rf, err := ParseRequestFile([]byte(`
url: http://example.com/items/1
expect:
  status: 200
  headers:
    Content-Type: application/json
  json:
    id: 1
    name: widget
    tags.#: 2
  contains: widget
  maxDuration: 100
  schema: item.schema.json
`), dir)
	require.NoError(t, err)

	checks, err := rf.Check(newJSONResponse(t, 200, `{"id":1,"name":"widget","tags":["a","b"]}`))
	require.NoError(t, err)
	require.Len(t, checks, 8)
	for _, c := range checks {
		assert.True(t, c.Passed, "%s: expected %v, got %v (%s)", c.Subject, c.Expected, c.Actual, c.Message)
	}
}

func TestRequestFile_Check_Failures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "item.schema.json", itemSchema)
	rf, err := ParseRequestFile([]byte(`
url: http://example.com/items/1
expect:
  status: 200
  json:
    name: widget
    missing: x
  maxDuration: 10
  schema: item.schema.json
`), dir)
	require.NoError(t, err)

	checks, err := rf.Check(newJSONResponse(t, 404, `{"id":"x","name":"gadget"}`))
	require.NoError(t, err)

	bySubject := make(map[string]bool)
	for _, c := range checks {
		bySubject[c.Subject] = c.Passed
	}
	assert.Equal(t, map[string]bool{
		"status":       false,
		"json missing": false,
		"json name":    false,
		"duration":     false,
		"schema":       false,
	}, bySubject)
}

func TestRequestFile_Check_NoExpect(t *testing.T) {
	rf, err := ParseRequestFile([]byte(`url: http://example.com`), "")
	require.NoError(t, err)

	checks, err := rf.Check(newJSONResponse(t, 500, `{}`))
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestRequestFile_Check_MissingSchema(t *testing.T) {
	rf, err := ParseRequestFile([]byte(`
url: http://example.com
expect:
  schema: nope.json
`), t.TempDir())
	require.NoError(t, err)

	_, err = rf.Check(newJSONResponse(t, 200, `{}`))
	assert.Error(t, err)
}
