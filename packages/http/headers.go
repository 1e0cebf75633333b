package http

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	// MaxHeaderCount is the maximum number of lines a Headers set holds.
	MaxHeaderCount = 1000
	// MaxHeaderLineSize is the maximum encoded size of one header line.
	MaxHeaderLineSize = 8192
	// MaxHeaderNameSize is the maximum length of a header name.
	MaxHeaderNameSize = 256
	// MaxHeaderValueSize is the maximum length of a header value.
	MaxHeaderValueSize = 4096
)

// Headers is an ordered set of raw "Name: Value" lines. Order is the wire
// order and duplicate names are kept. Lookups are a linear,
// case-insensitive scan.
type Headers struct {
	lines []string
}

// NewHeaders returns an empty set.
func NewHeaders() *Headers {
	return &Headers{}
}

// HeadersFromMap builds a set from m. Keys are added in sorted order so the
// result is deterministic.
func HeadersFromMap(m map[string]string) (*Headers, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := NewHeaders()
	for _, k := range keys {
		if err := h.Add(k, m[k]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// HeadersFromPairs builds a set from name/value pairs, preserving order.
func HeadersFromPairs(pairs ...[2]string) (*Headers, error) {
	h := NewHeaders()
	for _, p := range pairs {
		if err := h.Add(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// HeadersFromLines builds a set from raw "Name: Value" lines.
func HeadersFromLines(lines ...string) (*Headers, error) {
	h := NewHeaders()
	for _, l := range lines {
		if err := h.AddLine(l); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Add appends "name: value" after validating both parts.
func (h *Headers) Add(name, value string) error {
	if err := validateHeaderName(name); err != nil {
		return err
	}
	if err := validateHeaderValue(value); err != nil {
		return err
	}
	return h.push(name + ": " + value)
}

// AddLine appends a raw header line verbatim. The line must contain a
// colon that is neither its first nor its last character.
func (h *Headers) AddLine(line string) error {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 || idx == len(line)-1 {
		return newError(ErrInvalidArgument, "header", fmt.Sprintf("malformed header line %q", line), nil)
	}
	if err := validateHeaderName(line[:idx]); err != nil {
		return err
	}
	if err := validateHeaderValue(strings.Trim(line[idx+1:], " \t")); err != nil {
		return err
	}
	return h.push(line)
}

// AddAll appends every line of other, stopping at the first failure.
func (h *Headers) AddAll(other *Headers) error {
	if other == nil {
		return nil
	}
	for _, l := range other.lines {
		if err := h.AddLine(l); err != nil {
			return err
		}
	}
	return nil
}

func (h *Headers) push(line string) error {
	if len(line) > MaxHeaderLineSize {
		return newError(ErrLimitExceeded, "header", fmt.Sprintf("line of %d bytes exceeds %d", len(line), MaxHeaderLineSize), nil)
	}
	if len(h.lines) >= MaxHeaderCount {
		return newError(ErrLimitExceeded, "header", fmt.Sprintf("more than %d headers", MaxHeaderCount), nil)
	}
	h.lines = append(h.lines, line)
	return nil
}

// Remove drops every line whose name matches. Absent names are ignored.
func (h *Headers) Remove(name string) {
	if h == nil {
		return
	}
	kept := h.lines[:0]
	for _, l := range h.lines {
		if !matchesName(l, name) {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(h.lines); i++ {
		h.lines[i] = ""
	}
	h.lines = kept
}

// Get returns the value of the first line matching name.
func (h *Headers) Get(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	for _, l := range h.lines {
		if matchesName(l, name) {
			return lineValue(l, len(name)), true
		}
	}
	return "", false
}

// Values returns the values of every line matching name, in order.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, l := range h.lines {
		if matchesName(l, name) {
			out = append(out, lineValue(l, len(name)))
		}
	}
	return out
}

// Has reports whether any line matches name.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// All returns a copy of the stored lines in order.
func (h *Headers) All() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len returns the number of stored lines.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.lines)
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	return &Headers{lines: h.All()}
}

// Header renders the set into a net/http header map. The result does not
// share memory with h.
func (h *Headers) Header() http.Header {
	out := make(http.Header, h.Len())
	if h == nil {
		return out
	}
	for _, l := range h.lines {
		idx := strings.IndexByte(l, ':')
		out.Add(l[:idx], strings.Trim(l[idx+1:], " \t"))
	}
	return out
}

// matchesName is a case-insensitive prefix match on "name:".
func matchesName(line, name string) bool {
	n := len(name)
	return len(line) > n && line[n] == ':' && strings.EqualFold(line[:n], name)
}

func lineValue(line string, nameLen int) string {
	v := line[nameLen+1:]
	return strings.TrimPrefix(v, " ")
}

func validateHeaderName(name string) error {
	if name == "" {
		return newError(ErrInvalidArgument, "header", "empty header name", nil)
	}
	if len(name) > MaxHeaderNameSize {
		return newError(ErrInvalidArgument, "header", fmt.Sprintf("header name longer than %d bytes", MaxHeaderNameSize), nil)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == ':' {
			return newError(ErrInvalidArgument, "header", fmt.Sprintf("invalid character %q in header name %q", c, name), nil)
		}
	}
	return nil
}

func validateHeaderValue(value string) error {
	if len(value) > MaxHeaderValueSize {
		return newError(ErrInvalidArgument, "header", fmt.Sprintf("header value longer than %d bytes", MaxHeaderValueSize), nil)
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return newError(ErrInvalidArgument, "header", fmt.Sprintf("control character %#x in header value", c), nil)
		}
	}
	return nil
}
