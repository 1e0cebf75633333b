package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_Defaults(t *testing.T) {
	req, err := NewRequest("", "http://example.com")
	require.NoError(t, err)

	assert.Equal(t, MethodGet, req.method())
	assert.True(t, req.Redirects.Allow())
	assert.Equal(t, DefaultMaxRedirects, req.Redirects.MaxRedirects())
	assert.Equal(t, AuthNone, req.Auth.Type)
	assert.Empty(t, req.Proxy)
	assert.False(t, req.InsecureSkipVerify)
	assert.Zero(t, req.Timeout)
}

func TestNewRequest_Options(t *testing.T) {
	req, err := NewRequest(MethodPost, "http://example.com",
		WithHeader("X-A", "1"),
		WithJSON(map[string]int{"a": 1}),
		WithParam("q", "go"),
		WithBasicAuth("user", "pass"),
		WithCookie("sid", "abc"),
		WithRedirects(3),
		WithTimeout(2*time.Second),
		WithRequestID(),
	)
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, string(req.Body))
	ct, _ := req.Headers.Get("Content-Type")
	assert.Equal(t, "application/json", ct)
	assert.Equal(t, "go", req.Params["q"])
	assert.Equal(t, "user:pass", req.Auth.UserPass())
	v, _ := req.Cookies.Get("sid")
	assert.Equal(t, "abc", v)
	assert.Equal(t, 3, req.Redirects.MaxRedirects())
	assert.Equal(t, 2*time.Second, req.Timeout)
	id, ok := req.Headers.Get("X-Request-ID")
	assert.True(t, ok)
	assert.Len(t, id, 36)
}

func TestNewRequest_OptionErrors(t *testing.T) {
	_, err := NewRequest(MethodGet, "http://x", WithHeader("Bad Name", "v"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRequest(MethodGet, "http://x", WithRedirects(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRequest(MethodGet, "http://x", WithTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRequest(MethodPost, "http://x", WithFile("", "/tmp/x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRequest_Validate(t *testing.T) {
	var nilReq *Request
	assert.ErrorIs(t, nilReq.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, (&Request{}).Validate(), ErrInvalidRequest)
	assert.NoError(t, (&Request{URL: "http://x"}).Validate())
}

func TestRedirectPolicy(t *testing.T) {
	assert.Equal(t, 0, RedirectPolicy{Disabled: true, Max: 5}.MaxRedirects())
	assert.False(t, RedirectPolicy{Disabled: true}.Allow())
	assert.Equal(t, 7, RedirectPolicy{Max: 7, MaxSet: true}.MaxRedirects())
	assert.Equal(t, DefaultMaxRedirects, RedirectPolicy{Max: 7}.MaxRedirects())
	assert.Equal(t, 0, RedirectPolicy{MaxSet: true}.MaxRedirects())
	assert.True(t, RedirectPolicy{MaxSet: true}.Allow())

	req, err := NewRequest(MethodGet, "http://x", WithRedirects(0))
	require.NoError(t, err)
	assert.Equal(t, 0, req.Redirects.MaxRedirects())
	assert.True(t, req.Redirects.Allow())

	_, err = NewRequest(MethodGet, "http://x", WithRedirects(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseAuth(t *testing.T) {
	a := ParseAuth("alice:s3cr:et")
	assert.Equal(t, AuthBasic, a.Type)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "s3cr:et", a.Password)

	a = ParseAuth("bob")
	assert.Equal(t, "bob", a.Username)
	assert.Empty(t, a.Password)

	assert.Empty(t, Auth{}.UserPass())
	assert.Equal(t, "digest", AuthDigest.String())
}

func TestRequest_Clone(t *testing.T) {
	req, err := NewRequest(MethodPut, "http://x",
		WithHeader("A", "1"),
		WithCookie("c", "1"),
		WithParam("p", "1"),
		WithBodyString("body"),
		WithBodyReader(strings.NewReader("stream")),
	)
	require.NoError(t, err)

	c := req.Clone()
	require.NoError(t, c.Headers.Add("B", "2"))
	c.Cookies.Add("c", "2")
	c.Params["p"] = "2"
	c.Body[0] = 'B'

	assert.Equal(t, 1, req.Headers.Len())
	v, _ := req.Cookies.Get("c")
	assert.Equal(t, "1", v)
	assert.Equal(t, "1", req.Params["p"])
	assert.Equal(t, "body", string(req.Body))
	assert.Same(t, req.BodyReader, c.BodyReader)
}
