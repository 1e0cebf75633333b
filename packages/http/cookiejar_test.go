package http

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieJar_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	u, _ := url.Parse("https://api.example.com/v1")

	jar := newCookieJar()
	jar.SetCookies(u, []*http.Cookie{
		{Name: "host", Value: "1"},
		{Name: "wide", Value: "2", Domain: "example.com", Path: "/", HttpOnly: true},
		{Name: "gone", Value: "3", MaxAge: -1},
		{Name: "later", Value: "4", Expires: time.Now().Add(time.Hour)},
	})
	require.Equal(t, 3, jar.Len())
	require.NoError(t, jar.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, netscapeHeader))
	assert.Contains(t, text, "#HttpOnly_.example.com\tTRUE\t/\tFALSE\t0\twide\t2")
	assert.Contains(t, text, "api.example.com\tFALSE\t/\tFALSE\t0\thost\t1")
	assert.NotContains(t, text, "gone")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded := newCookieJar()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 3, loaded.Len())

	names := map[string]string{}
	for _, c := range loaded.Cookies(u) {
		names[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{"host": "1", "wide": "2", "later": "4"}, names)

	other, _ := url.Parse("https://www.example.com/")
	var otherNames []string
	for _, c := range loaded.Cookies(other) {
		otherNames = append(otherNames, c.Name)
	}
	assert.Equal(t, []string{"wide"}, otherNames)
}

func TestCookieJar_LoadMissingFile(t *testing.T) {
	jar := newCookieJar()
	assert.NoError(t, jar.Load(filepath.Join(t.TempDir(), "missing.txt")))
	assert.Equal(t, 0, jar.Len())
}

func TestParseNetscape(t *testing.T) {
	input := netscapeHeader + "\n" +
		"# comment\n" +
		"\n" +
		".example.com\tTRUE\t/\tTRUE\t2000000000\ttoken\tabc\n" +
		"#HttpOnly_host.test\tFALSE\t/app\tFALSE\t0\tsid\tx=y\n"

	entries, err := parseNetscape(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "example.com", entries[0].Domain)
	assert.False(t, entries[0].HostOnly)
	assert.True(t, entries[0].Secure)
	assert.Equal(t, int64(2000000000), entries[0].Expires.Unix())

	assert.Equal(t, "host.test", entries[1].Domain)
	assert.True(t, entries[1].HostOnly)
	assert.True(t, entries[1].HTTPOnly)
	assert.Equal(t, "/app", entries[1].Path)
	assert.Equal(t, "x=y", entries[1].Value)
	assert.True(t, entries[1].Expires.IsZero())
}

func TestParseNetscape_Malformed(t *testing.T) {
	_, err := parseNetscape(strings.NewReader("example.com\tTRUE\t/\n"))
	assert.Error(t, err)

	_, err = parseNetscape(strings.NewReader("example.com\tTRUE\t/\tFALSE\tsoon\tn\tv\n"))
	assert.Error(t, err)
}

func TestRequestJar_OverlayOnlyForOriginalHost(t *testing.T) {
	base := newCookieJar()
	u, _ := url.Parse("http://a.test/")
	base.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "stored"}, {Name: "keep", Value: "1"}})

	rj := &requestJar{base: base, host: "a.test", extra: []*http.Cookie{{Name: "sid", Value: "override"}}}

	got := map[string]string{}
	for _, c := range rj.Cookies(u) {
		got[c.Name] = c.Value
	}
	assert.Equal(t, map[string]string{"sid": "override", "keep": "1"}, got)

	other, _ := url.Parse("http://b.test/")
	assert.Empty(t, rj.Cookies(other))
}
