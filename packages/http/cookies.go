package http

import "sort"

// Cookies maps cookie names to values. Adding an existing name overwrites it.
type Cookies struct {
	m map[string]string
}

// NewCookies returns a set seeded with initial, which may be nil.
func NewCookies(initial map[string]string) *Cookies {
	c := &Cookies{m: make(map[string]string, len(initial))}
	for k, v := range initial {
		c.m[k] = v
	}
	return c
}

func (c *Cookies) Add(name, value string) {
	if c.m == nil {
		c.m = make(map[string]string)
	}
	c.m[name] = value
}

func (c *Cookies) Remove(name string) {
	if c == nil {
		return
	}
	delete(c.m, name)
}

func (c *Cookies) Get(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.m[name]
	return v, ok
}

// All returns a copy of the mapping.
func (c *Cookies) All() map[string]string {
	out := make(map[string]string, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Names returns the cookie names in sorted order.
func (c *Cookies) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.m))
	for k := range c.m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c *Cookies) Len() int {
	if c == nil {
		return 0
	}
	return len(c.m)
}

func (c *Cookies) Clone() *Cookies {
	if c == nil {
		return NewCookies(nil)
	}
	return NewCookies(c.m)
}

// Merge adds every cookie of other, overwriting names already present.
func (c *Cookies) Merge(other *Cookies) {
	if other == nil {
		return
	}
	for k, v := range other.m {
		c.Add(k, v)
	}
}
