package http

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

const netscapeHeader = "# Netscape HTTP Cookie File"

// cookieJar is the session's cookie engine. It delegates matching to
// net/http/cookiejar and keeps its own record of stored cookies so they
// can be written back out in Netscape format.
type cookieJar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]*jarEntry
}

type jarEntry struct {
	Domain   string
	HostOnly bool
	Path     string
	Secure   bool
	HTTPOnly bool
	Expires  time.Time
	Name     string
	Value    string
}

func (e *jarEntry) key() string {
	return e.Domain + "\x00" + e.Path + "\x00" + e.Name
}

func (e *jarEntry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

func newCookieJar() *cookieJar {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &cookieJar{jar: jar, entries: make(map[string]*jarEntry)}
}

func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		e := &jarEntry{
			Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			Name:     c.Name,
			Value:    c.Value,
		}
		if e.Domain == "" {
			e.Domain = u.Hostname()
			e.HostOnly = true
		}
		if e.Path == "" || e.Path[0] != '/' {
			e.Path = "/"
		}
		switch {
		case c.MaxAge < 0:
			e.Expires = now
		case c.MaxAge > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			e.Expires = c.Expires
		}
		if e.expired(now) {
			delete(j.entries, e.key())
			continue
		}
		j.entries[e.key()] = e
	}
}

// Load reads a Netscape cookie file. A missing file is not an error.
func (j *cookieJar) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening cookie jar: %w", err)
	}
	defer f.Close()

	entries, err := parseNetscape(f)
	if err != nil {
		return fmt.Errorf("parsing cookie jar %s: %w", path, err)
	}
	now := time.Now()
	for _, e := range entries {
		if e.expired(now) {
			continue
		}
		scheme := "http"
		if e.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}
		c := &http.Cookie{
			Name:     e.Name,
			Value:    e.Value,
			Path:     e.Path,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
			Expires:  e.Expires,
		}
		if !e.HostOnly {
			c.Domain = e.Domain
		}
		j.SetCookies(u, []*http.Cookie{c})
	}
	return nil
}

// Save writes every unexpired cookie to path in Netscape format.
func (j *cookieJar) Save(path string) error {
	j.mu.Lock()
	entries := make([]*jarEntry, 0, len(j.entries))
	now := time.Now()
	for _, e := range j.entries {
		if !e.expired(now) {
			entries = append(entries, e)
		}
	}
	j.mu.Unlock()

	sort.Slice(entries, func(a, b int) bool { return entries[a].key() < entries[b].key() })

	var sb strings.Builder
	sb.WriteString(netscapeHeader + "\n\n")
	for _, e := range entries {
		writeNetscapeLine(&sb, e)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("writing cookie jar: %w", err)
	}
	return nil
}

// Len returns the number of unexpired cookies held.
func (j *cookieJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	now := time.Now()
	for _, e := range j.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

func writeNetscapeLine(sb *strings.Builder, e *jarEntry) {
	domain := e.Domain
	if !e.HostOnly {
		domain = "." + domain
	}
	if e.HTTPOnly {
		domain = "#HttpOnly_" + domain
	}
	var expires int64
	if !e.Expires.IsZero() {
		expires = e.Expires.Unix()
	}
	fmt.Fprintf(sb, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
		domain, netscapeBool(!e.HostOnly), e.Path, netscapeBool(e.Secure), expires, e.Name, e.Value)
}

func netscapeBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func parseNetscape(r io.Reader) ([]*jarEntry, error) {
	var entries []*jarEntry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 fields, got %d", lineNo, len(fields))
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid expiry %q", lineNo, fields[4])
		}
		e := &jarEntry{
			Domain:   strings.TrimPrefix(strings.ToLower(fields[0]), "."),
			HostOnly: !strings.EqualFold(fields[1], "TRUE"),
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HTTPOnly: httpOnly,
			Name:     fields[5],
			Value:    fields[6],
		}
		if expires > 0 {
			e.Expires = time.Unix(expires, 0)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// requestJar layers one request's effective cookies over the session jar.
// Effective cookies are only offered to the request's original host and
// win over stored cookies of the same name.
type requestJar struct {
	base  *cookieJar
	host  string
	extra []*http.Cookie
}

func (j *requestJar) Cookies(u *url.URL) []*http.Cookie {
	stored := j.base.Cookies(u)
	if len(j.extra) == 0 || !strings.EqualFold(u.Hostname(), j.host) {
		return stored
	}
	out := make([]*http.Cookie, 0, len(stored)+len(j.extra))
	out = append(out, j.extra...)
	for _, c := range stored {
		if !hasCookie(j.extra, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

func (j *requestJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.base.SetCookies(u, cookies)
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}
