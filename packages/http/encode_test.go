package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcXYZ019", "abcXYZ019"},
		{"-_.~", "-_.~"},
		{"a b", "a%20b"},
		{"a&b=c", "a%26b%3Dc"},
		{"/?#", "%2F%3F%23"},
		{"é", "%C3%A9"},
		{"\xff", "%FF"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentEncode(tt.in))
		})
	}
}

func TestPercentEncode_DecodesBack(t *testing.T) {
	for _, v := range []string{"hello world", "a&b=c", "naïve ☃", "100%", "x+y"} {
		got, err := url.QueryUnescape(PercentEncode(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestComposeURL(t *testing.T) {
	params := map[string]string{"q": "a b", "page": "2"}

	tests := []struct {
		name string
		base string
		want string
	}{
		{"plain", "http://x/search", "http://x/search?page=2&q=a%20b"},
		{"existing query", "http://x/search?lang=en", "http://x/search?lang=en&page=2&q=a%20b"},
		{"trailing question mark", "http://x/search?", "http://x/search?page=2&q=a%20b"},
		{"fragment", "http://x/search#top", "http://x/search?page=2&q=a%20b#top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeURL(tt.base, params))
		})
	}

	assert.Equal(t, "http://x/", ComposeURL("http://x/", nil))
}
