package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookies_AddOverwrites(t *testing.T) {
	c := NewCookies(nil)
	c.Add("session", "one")
	c.Add("session", "two")

	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("session")
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestCookies_Remove(t *testing.T) {
	c := NewCookies(map[string]string{"a": "1", "b": "2"})
	c.Remove("a")
	c.Remove("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, c.Names())
}

func TestCookies_AllIsCopy(t *testing.T) {
	c := NewCookies(map[string]string{"a": "1"})
	all := c.All()
	all["b"] = "2"

	assert.Equal(t, 1, c.Len())
}

func TestCookies_MergeRequestWins(t *testing.T) {
	defaults := NewCookies(map[string]string{"theme": "dark", "lang": "en"})
	effective := defaults.Clone()
	effective.Merge(NewCookies(map[string]string{"lang": "fr"}))

	assert.Equal(t, map[string]string{"theme": "dark", "lang": "fr"}, effective.All())
	v, _ := defaults.Get("lang")
	assert.Equal(t, "en", v, "merge must not touch the source set")
}

func TestCookies_NilSafe(t *testing.T) {
	var c *Cookies
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Names())
	assert.Empty(t, c.All())
	assert.Equal(t, 0, c.Clone().Len())
	c.Remove("x")
}
