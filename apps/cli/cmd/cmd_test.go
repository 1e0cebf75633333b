package cmd

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/reqx/packages/core/config"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"explicit", &exitError{code: ExitParseError, err: errors.New("bad")}, ExitParseError},
		{"wrapped explicit", fmt.Errorf("outer: %w", &exitError{code: ExitConfigError, err: errors.New("x")}), ExitConfigError},
		{"timeout", fmt.Errorf("send: %w", http.ErrTimeout), ExitTimeout},
		{"http", fmt.Errorf("status: %w", http.ErrHTTP), ExitHTTPError},
		{"invalid request", http.ErrInvalidRequest, ExitUsageError},
		{"connection", fmt.Errorf("dial: %w", http.ErrConnection), ExitNetworkError},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestRequestFlags_Build(t *testing.T) {
	f := &requestFlags{
		headers: []string{"Accept: text/plain"},
		params:  []string{"q=go"},
		cookies: []string{"sid=1"},
		data:    "payload",
	}
	req, err := f.build(http.MethodPost, "http://example.com/search")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	accept, _ := req.Headers.Get("Accept")
	assert.Equal(t, "text/plain", accept)
	assert.Equal(t, "go", req.Params["q"])

	assert.Equal(t, http.DefaultMaxRedirects, req.Redirects.MaxRedirects())

	req, err = (&requestFlags{maxRedirectsSet: true}).build(http.MethodGet, "http://x")
	require.NoError(t, err)
	assert.True(t, req.Redirects.Allow())
	assert.Equal(t, 0, req.Redirects.MaxRedirects())

	_, err = (&requestFlags{headers: []string{"no colon"}}).build(http.MethodGet, "http://x")
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = (&requestFlags{json: "{not json"}).build(http.MethodPost, "http://x")
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = (&requestFlags{json: "{}", data: "x"}).build(http.MethodPost, "http://x")
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestNewResolver(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REQX_CMD_TEST_KEY=k1\n"), 0o600))

	r, err := newResolver([]string{"base=http://localhost", "empty="}, []string{envFile})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/k1|", r.Resolve("{{base}}/{{$REQX_CMD_TEST_KEY}}|{{empty}}"))

	_, err = newResolver([]string{"novalue"}, nil)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = newResolver(nil, []string{filepath.Join(t.TempDir(), "missing.env")})
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func writeRequestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSendFiles_CapturesFlowBetweenFiles(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"token":"t1"}`)
		case "/me":
			if r.Header.Get("Authorization") != "Bearer t1" {
				w.WriteHeader(nethttp.StatusUnauthorized)
				fmt.Fprint(w, `{}`)
				return
			}
			fmt.Fprint(w, `{"name":"ann"}`)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	login := writeRequestFile(t, dir, "login.yaml", `
name: login
method: POST
url: "{{base}}/login"
capture:
  token: token
expect:
  status: 200
`)
	me := writeRequestFile(t, dir, "me.yaml", `
url: "{{base}}/me"
headers:
  Authorization: Bearer {{login.token}}
expect:
  status: 200
  json:
    name: ann
`)

	s, err := http.NewSession()
	require.NoError(t, err)
	defer s.Close()

	r, err := newResolver([]string{"base=" + server.URL}, nil)
	require.NoError(t, err)

	run, err := sendFiles(context.Background(), s, r, []string{login, me}, false)
	require.NoError(t, err)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "login", run.Results[0].Name)
	assert.Equal(t, "me.yaml", run.Results[1].Name)
	assert.Equal(t, server.URL+"/me", run.Results[1].URL)

	passed, failed, errored := run.Counts()
	assert.Equal(t, 2, passed)
	assert.Zero(t, failed)
	assert.Zero(t, errored)
}

func TestSendFiles_BailAndParseError(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	first := writeRequestFile(t, dir, "a.yaml", "url: "+server.URL+"\nexpect:\n  status: 200\n")
	second := writeRequestFile(t, dir, "b.yaml", "url: "+server.URL+"\n")

	s, err := http.NewSession()
	require.NoError(t, err)
	defer s.Close()

	run, err := sendFiles(context.Background(), s, nil, []string{first, second}, true)
	require.NoError(t, err)
	assert.Len(t, run.Results, 1)
	assert.False(t, run.Results[0].Passed())

	broken := writeRequestFile(t, dir, "broken.yaml", "method: GET\n")
	_, err = sendFiles(context.Background(), s, nil, []string{first, broken}, false)
	assert.Equal(t, ExitParseError, exitCode(err))
}

func TestShellJoin_RoundTrip(t *testing.T) {
	args := []string{"curl", "-H", "X-Note: it's fine", "-d", `{"a": "b"}`, "http://x"}
	rf, err := config.ParseCurl(shellJoin(args))
	require.NoError(t, err)
	assert.Equal(t, "it's fine", rf.Headers["X-Note"])
	assert.Equal(t, `{"a": "b"}`, rf.Body)
	assert.Equal(t, "http://x", rf.URL)
}
