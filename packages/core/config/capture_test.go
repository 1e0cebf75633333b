package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/core/vars"
	reqxhttp "github.com/abdul-hamid-achik/reqx/packages/http"
)

func TestRequestFile_Resolve(t *testing.T) {
	rf, err := ParseRequestFile([]byte(`
name: update
method: PATCH
url: "{{base}}/items/{{itemId}}"
vars:
  base: http://example.com
headers:
  Authorization: Bearer {{token}}
params:
  v: "{{version}}"
json:
  name: "{{name}}"
  tags: ["{{name}}", fixed]
auth:
  type: basic
  username: "{{user}}"
  password: "{{$REQX_TEST_PASSWORD}}"
expect:
  status: 200
  contains: "{{name}}"
  json:
    name: "{{name}}"
`), "")
	require.NoError(t, err)
	t.Setenv("REQX_TEST_PASSWORD", "s3cret")

	r := vars.NewResolver()
	r.SetVariables(map[string]any{"version": 2, "name": "widget", "user": "ann"})
	r.SetCapture("create", "itemId", 7)
	r.SetCapture("login", "token", "tok")

	out := rf.Resolve(r)
	assert.Equal(t, "http://example.com/items/7", out.URL)
	assert.Equal(t, "Bearer tok", out.Headers["Authorization"])
	assert.Equal(t, "2", out.Params["v"])
	assert.Equal(t, map[string]any{"name": "widget", "tags": []any{"widget", "fixed"}}, out.JSON)
	assert.Equal(t, "ann", out.Auth.Username)
	assert.Equal(t, "s3cret", out.Auth.Password)
	assert.Equal(t, "widget", out.Expect.Contains)
	assert.Equal(t, "widget", out.Expect.JSON["name"])

	// the original is untouched
	assert.Equal(t, "{{base}}/items/{{itemId}}", rf.URL)
	assert.Equal(t, "{{user}}", rf.Auth.Username)
	assert.Equal(t, "Bearer {{token}}", rf.Headers["Authorization"])

	req, err := out.Build()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/items/7", req.URL)
}

func TestRequestFile_Capture(t *testing.T) {
	rf, err := ParseRequestFile([]byte(`
name: create
url: http://example.com/items
capture:
  id: id
  first: tags.0
  status: status
  type: header:Content-Type
  session: cookie:sid
  missing: nope.nope
`), "")
	require.NoError(t, err)

	resp := newJSONResponse(t, 201, `{"id":42,"tags":["a","b"]}`)
	resp.Cookies = reqxhttp.NewCookies(map[string]string{"sid": "xyz"})

	r := vars.NewResolver()
	missing := rf.Capture(resp, r)
	assert.Equal(t, []string{"missing"}, missing)

	assert.Equal(t, "42 a 201 xyz", r.Resolve("{{id}} {{create.first}} {{status}} {{session}}"))
	assert.Equal(t, "application/json; charset=utf-8", r.Resolve("{{create.type}}"))
}

func TestExtract_NonJSON(t *testing.T) {
	headers, err := reqxhttp.HeadersFromLines("Content-Type: text/plain")
	require.NoError(t, err)
	resp := &reqxhttp.Response{StatusCode: 200, Headers: headers, Body: []byte("pong")}

	v, ok := extract(resp, "body")
	assert.True(t, ok)
	assert.Equal(t, "pong", v)

	_, ok = extract(resp, "id")
	assert.False(t, ok)

	_, ok = extract(resp, "cookie:sid")
	assert.False(t, ok)

	v, ok = extract(resp, "duration")
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
}
