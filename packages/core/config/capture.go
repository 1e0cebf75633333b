package config

import (
	"strings"

	"github.com/abdul-hamid-achik/reqx/packages/core/vars"
	"github.com/abdul-hamid-achik/reqx/packages/http"
)

// Capture sources other than a gjson body path.
const (
	captureStatus   = "status"
	captureDuration = "duration"
	captureBody     = "body"
	captureHeader   = "header:"
	captureCookie   = "cookie:"
)

// extract reads one capture source from resp:
//
//	status, duration (ms), body, header:Name, cookie:Name, or a gjson path
func extract(resp *http.Response, source string) (any, bool) {
	source = strings.TrimSpace(source)
	switch {
	case source == captureStatus:
		return resp.StatusCode, true
	case source == captureDuration:
		return resp.Elapsed.Milliseconds(), true
	case source == captureBody:
		return resp.Text(), true
	case strings.HasPrefix(source, captureHeader):
		return resp.Headers.Get(strings.TrimSpace(source[len(captureHeader):]))
	case strings.HasPrefix(source, captureCookie):
		if resp.Cookies == nil {
			return nil, false
		}
		return resp.Cookies.Get(strings.TrimSpace(source[len(captureCookie):]))
	}

	if !resp.IsJSON() {
		return nil, false
	}
	result := resp.Get(source)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// Capture stores the file's captures from resp in r, qualified by the
// file's name. It returns the names that could not be extracted.
func (rf *RequestFile) Capture(resp *http.Response, r *vars.Resolver) []string {
	var missing []string
	for _, name := range sortedKeys(rf.Captures) {
		value, ok := extract(resp, rf.Captures[name])
		if !ok {
			missing = append(missing, name)
			continue
		}
		r.SetCapture(rf.Name, name, value)
	}
	return missing
}

// Resolve returns a copy of the file with placeholders expanded. The
// file's own vars are added to r first.
func (rf *RequestFile) Resolve(r *vars.Resolver) *RequestFile {
	if len(rf.Vars) > 0 {
		r.SetVariables(rf.Vars)
	}

	out := *rf
	out.URL = r.Resolve(rf.URL)
	out.Headers = r.ResolveMap(rf.Headers)
	out.Params = r.ResolveMap(rf.Params)
	out.Cookies = r.ResolveMap(rf.Cookies)
	out.Body = r.Resolve(rf.Body)
	out.Proxy = r.Resolve(rf.Proxy)
	if rf.JSON != nil {
		out.JSON = r.ResolveValue(rf.JSON)
	}
	if rf.Auth != nil {
		auth := *rf.Auth
		auth.Username = r.Resolve(auth.Username)
		auth.Password = r.Resolve(auth.Password)
		out.Auth = &auth
	}
	if rf.Expect != nil {
		expect := *rf.Expect
		expect.Headers = r.ResolveMap(rf.Expect.Headers)
		expect.Contains = r.Resolve(rf.Expect.Contains)
		if rf.Expect.JSON != nil {
			expect.JSON = make(map[string]any, len(rf.Expect.JSON))
			for path, v := range rf.Expect.JSON {
				expect.JSON[path] = r.ResolveValue(v)
			}
		}
		out.Expect = &expect
	}
	return &out
}
