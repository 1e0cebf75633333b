package http

import (
	"encoding/json"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// maxErrBodySize caps the body excerpt carried by a StatusError.
const maxErrBodySize = 4 << 10

// Response is the record of one exchange. StatusCode 0 means the request
// was never executed.
type Response struct {
	StatusCode int
	Reason     string
	Proto      string
	// URL is the final URL after redirects.
	URL        string
	Redirected bool
	Headers    *Headers
	Body       []byte
	// Truncated is set when the body hit the session's size cap.
	Truncated bool
	// Decompressed is set when the transport decoded the body and dropped
	// its Content-Encoding header.
	Decompressed   bool
	RequestURL     string
	RequestHeaders *Headers
	// Cookies holds the cookies set by the response.
	Cookies   *Cookies
	Elapsed   time.Duration
	History   []string
	Timestamp time.Time

	metaOnce sync.Once
	meta     responseMeta
}

type responseMeta struct {
	mediaType string
	charset   string
	length    int64
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

func (r *Response) IsInformational() bool {
	return r.StatusCode >= 100 && r.StatusCode < 200
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirectStatus() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// RaiseForStatus returns a *StatusError for 4xx and 5xx responses.
func (r *Response) RaiseForStatus() error {
	if r.StatusCode < 400 {
		return nil
	}
	body := r.Body
	if len(body) > maxErrBodySize {
		body = body[:maxErrBodySize]
	}
	return &StatusError{
		StatusCode: r.StatusCode,
		Reason:     r.Reason,
		URL:        r.URL,
		Body:       string(body),
	}
}

func (r *Response) Text() string {
	return string(r.Body)
}

// ElapsedSeconds returns the exchange time in seconds.
func (r *Response) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Header returns the first value of the named response header.
func (r *Response) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}

func (r *Response) parseMeta() {
	r.metaOnce.Do(func() {
		r.meta.length = -1
		if ct := r.Header("Content-Type"); ct != "" {
			mt, params, err := mime.ParseMediaType(ct)
			if err != nil {
				mt, _, _ = strings.Cut(ct, ";")
				mt = strings.ToLower(strings.TrimSpace(mt))
			}
			r.meta.mediaType = mt
			r.meta.charset = strings.ToLower(params["charset"])
		}
		if cl := r.Header("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				r.meta.length = n
			}
		}
	})
}

// ContentType returns the media type without parameters, lower-cased.
func (r *Response) ContentType() string {
	r.parseMeta()
	return r.meta.mediaType
}

// Charset returns the charset parameter of Content-Type, if any.
func (r *Response) Charset() string {
	r.parseMeta()
	return r.meta.charset
}

// ContentLength returns the Content-Length header, or the body size when
// the header is absent.
func (r *Response) ContentLength() int64 {
	r.parseMeta()
	if r.meta.length >= 0 {
		return r.meta.length
	}
	return int64(len(r.Body))
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

// IsBinary reports a non-empty body that is neither textual by media type
// nor valid UTF-8.
func (r *Response) IsBinary() bool {
	if len(r.Body) == 0 {
		return false
	}
	ct := r.ContentType()
	if strings.HasPrefix(ct, "text/") || r.IsJSON() || strings.HasSuffix(ct, "xml") {
		return false
	}
	if ct == "" {
		return !utf8.Valid(r.Body)
	}
	return true
}

// IsCompressed reports whether the server sent an encoded body, including
// one the transport already decompressed.
func (r *Response) IsCompressed() bool {
	if r.Decompressed {
		return true
	}
	enc := r.Header("Content-Encoding")
	return enc != "" && !strings.EqualFold(enc, "identity")
}

func (r *Response) ETag() string         { return r.Header("ETag") }
func (r *Response) LastModified() string { return r.Header("Last-Modified") }
func (r *Response) Server() string       { return r.Header("Server") }

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return newError(ErrRequest, "json", "JSON parse error", err)
	}
	return nil
}

// JSONSafe decodes the body into a generic value, reporting false instead
// of an error on malformed input.
func (r *Response) JSONSafe() (any, bool) {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Get looks up a gjson path in the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// ValidateSchema checks the body against a JSON schema document.
func (r *Response) ValidateSchema(schema []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(r.Body),
	)
	if err != nil {
		return newError(ErrRequest, "schema", "schema validation error", err)
	}
	if result.Valid() {
		return nil
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return newError(ErrRequest, "schema", fmt.Sprintf("schema validation failed: %s", strings.Join(violations, "; ")), nil)
}
