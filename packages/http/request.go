package http

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Standard methods. Any other verb string is sent as-is.
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
	MethodPatch   = "PATCH"
)

// DefaultMaxRedirects is the redirect cap used when a RedirectPolicy
// leaves Max unset.
const DefaultMaxRedirects = 30

type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthDigest
)

func (t AuthType) String() string {
	switch t {
	case AuthBasic:
		return "basic"
	case AuthDigest:
		return "digest"
	default:
		return "none"
	}
}

// Auth holds credentials for basic or digest authentication.
type Auth struct {
	Type     AuthType
	Username string
	Password string
}

// ParseAuth builds basic credentials from a "user:pass" string. A string
// without a colon is taken as the username with an empty password.
func ParseAuth(userPass string) Auth {
	user, pass, _ := strings.Cut(userPass, ":")
	return Auth{Type: AuthBasic, Username: user, Password: pass}
}

// UserPass returns "username:password", or "" when no auth is set.
func (a Auth) UserPass() string {
	if a.Type == AuthNone {
		return ""
	}
	return a.Username + ":" + a.Password
}

// RedirectPolicy controls redirect following. The zero value follows up
// to DefaultMaxRedirects redirects. Max applies only when MaxSet is true,
// so a policy of zero redirects fails on the first hop.
type RedirectPolicy struct {
	Disabled bool
	Max      int
	MaxSet   bool
}

func (p RedirectPolicy) Allow() bool { return !p.Disabled }

func (p RedirectPolicy) MaxRedirects() int {
	if p.Disabled {
		return 0
	}
	if !p.MaxSet {
		return DefaultMaxRedirects
	}
	return p.Max
}

// File is one multipart upload: the form field name and the path read at
// send time.
type File struct {
	Field string
	Path  string
}

// Request is the declarative description of one HTTP call. Zero values
// take the documented defaults: redirects followed (max 30), no auth, no
// proxy, TLS verification on and the session's transfer timeout.
type Request struct {
	URL     string
	Method  string
	Headers *Headers
	Body    []byte
	// BodyReader streams the request payload when set. Body is ignored.
	BodyReader io.Reader
	Params     map[string]string
	Files      []File
	Auth       Auth
	Proxy      string
	Cookies    *Cookies
	Redirects  RedirectPolicy
	// InsecureSkipVerify turns off TLS peer and host verification.
	InsecureSkipVerify bool
	Timeout            time.Duration
	// OutputPath streams the response body to a file instead of memory.
	OutputPath string
	// OnChunk receives the response body as it arrives instead of it being
	// kept in memory.
	OnChunk func(chunk []byte) error
}

// RequestOption configures a Request built by NewRequest.
type RequestOption func(*Request) error

// NewRequest builds a Request for method and url with the given options.
func NewRequest(method, url string, opts ...RequestOption) (*Request, error) {
	r := &Request{
		Method:  method,
		URL:     url,
		Headers: NewHeaders(),
		Cookies: NewCookies(nil),
		Params:  make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("applying request option: %w", err)
		}
	}
	return r, nil
}

// Validate checks the request can be sent.
func (r *Request) Validate() error {
	if r == nil {
		return newError(ErrInvalidRequest, "send", "nil request", nil)
	}
	if r.URL == "" {
		return newError(ErrInvalidRequest, "send", "empty URL", nil)
	}
	return nil
}

// method returns the verb to send, defaulting to GET.
func (r *Request) method() string {
	if r.Method == "" {
		return MethodGet
	}
	return r.Method
}

// Clone returns a deep copy of the header set, cookie set, params and
// files. Callbacks and BodyReader are shared.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	c.Cookies = r.Cookies.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	c.Params = make(map[string]string, len(r.Params))
	for k, v := range r.Params {
		c.Params[k] = v
	}
	c.Files = append([]File(nil), r.Files...)
	return &c
}

func (r *Request) headers() *Headers {
	if r.Headers == nil {
		r.Headers = NewHeaders()
	}
	return r.Headers
}

func (r *Request) cookies() *Cookies {
	if r.Cookies == nil {
		r.Cookies = NewCookies(nil)
	}
	return r.Cookies
}

func WithHeader(name, value string) RequestOption {
	return func(r *Request) error {
		return r.headers().Add(name, value)
	}
}

// WithHeaders appends every line of h.
func WithHeaders(h *Headers) RequestOption {
	return func(r *Request) error {
		return r.headers().AddAll(h)
	}
}

func WithBody(body []byte) RequestOption {
	return func(r *Request) error {
		r.Body = body
		return nil
	}
}

func WithBodyString(body string) RequestOption {
	return WithBody([]byte(body))
}

// WithJSON encodes v as the body and sets Content-Type when absent.
func WithJSON(v any) RequestOption {
	return func(r *Request) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding request payload: %w", err)
		}
		r.Body = b
		if !r.headers().Has("Content-Type") {
			return r.headers().Add("Content-Type", "application/json")
		}
		return nil
	}
}

func WithBodyReader(rd io.Reader) RequestOption {
	return func(r *Request) error {
		r.BodyReader = rd
		return nil
	}
}

// WithParams merges query parameters (also sent as form fields on
// multipart uploads).
func WithParams(params map[string]string) RequestOption {
	return func(r *Request) error {
		if r.Params == nil {
			r.Params = make(map[string]string, len(params))
		}
		for k, v := range params {
			r.Params[k] = v
		}
		return nil
	}
}

func WithParam(key, value string) RequestOption {
	return WithParams(map[string]string{key: value})
}

func WithFile(field, path string) RequestOption {
	return func(r *Request) error {
		if field == "" {
			return newError(ErrInvalidArgument, "file", "empty field name", nil)
		}
		r.Files = append(r.Files, File{Field: field, Path: path})
		return nil
	}
}

func WithBasicAuth(username, password string) RequestOption {
	return func(r *Request) error {
		r.Auth = Auth{Type: AuthBasic, Username: username, Password: password}
		return nil
	}
}

func WithDigestAuth(username, password string) RequestOption {
	return func(r *Request) error {
		r.Auth = Auth{Type: AuthDigest, Username: username, Password: password}
		return nil
	}
}

func WithProxy(proxyURL string) RequestOption {
	return func(r *Request) error {
		r.Proxy = proxyURL
		return nil
	}
}

func WithCookie(name, value string) RequestOption {
	return func(r *Request) error {
		r.cookies().Add(name, value)
		return nil
	}
}

func WithCookies(c *Cookies) RequestOption {
	return func(r *Request) error {
		r.cookies().Merge(c)
		return nil
	}
}

// WithRedirects follows at most max redirects. Zero follows none: a 3xx
// response fails with ErrTooManyRedirects.
func WithRedirects(max int) RequestOption {
	return func(r *Request) error {
		if max < 0 {
			return newError(ErrInvalidArgument, "redirects", "max redirects must not be negative", nil)
		}
		r.Redirects = RedirectPolicy{Max: max, MaxSet: true}
		return nil
	}
}

// WithoutRedirects returns 3xx responses as-is.
func WithoutRedirects() RequestOption {
	return func(r *Request) error {
		r.Redirects = RedirectPolicy{Disabled: true}
		return nil
	}
}

func WithInsecureSkipVerify() RequestOption {
	return func(r *Request) error {
		r.InsecureSkipVerify = true
		return nil
	}
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) error {
		if d < 0 {
			return newError(ErrInvalidArgument, "timeout", "timeout must not be negative", nil)
		}
		r.Timeout = d
		return nil
	}
}

func WithOutputFile(path string) RequestOption {
	return func(r *Request) error {
		r.OutputPath = path
		return nil
	}
}

func WithOnChunk(fn func([]byte) error) RequestOption {
	return func(r *Request) error {
		r.OnChunk = fn
		return nil
	}
}

// WithRequestID adds an X-Request-ID header holding a random UUID.
func WithRequestID() RequestOption {
	return func(r *Request) error {
		return r.headers().Add("X-Request-ID", uuid.New().String())
	}
}
