package http

import (
	"errors"
	"fmt"
)

// kind is a sentinel error that can itself belong to a parent kind, so
// that errors.Is(ErrTimeout, ErrRequest) holds.
type kind struct {
	name   string
	parent error
}

func (k *kind) Error() string { return k.name }

func (k *kind) Unwrap() error { return k.parent }

var (
	// ErrInvalidArgument reports a malformed header name, value or line.
	ErrInvalidArgument error = &kind{name: "invalid argument"}
	// ErrLimitExceeded reports a header count or size cap being hit.
	ErrLimitExceeded error = &kind{name: "limit exceeded"}
	// ErrInvalidRequest reports a request that cannot be sent: empty URL,
	// unwritable output directory or a closed session.
	ErrInvalidRequest error = &kind{name: "invalid request"}

	// ErrRequest is the generic transport failure. Every other network
	// level kind below wraps it.
	ErrRequest error = &kind{name: "request error"}
	// ErrConnection reports a DNS resolution or connect failure.
	ErrConnection error = &kind{name: "connection error", parent: ErrRequest}
	// ErrTimeout reports a connect or transfer deadline being exceeded.
	ErrTimeout error = &kind{name: "timeout", parent: ErrRequest}
	// ErrTooManyRedirects reports a redirect chain longer than allowed.
	ErrTooManyRedirects error = &kind{name: "too many redirects", parent: ErrRequest}
	// ErrHTTP is wrapped by [StatusError].
	ErrHTTP error = &kind{name: "http error", parent: ErrRequest}
	// ErrIO reports a local file that could not be opened or written.
	ErrIO error = &kind{name: "io error", parent: ErrRequest}
)

// Error is the typed failure returned by this package. Kind is one of the
// sentinels above and Msg carries the diagnostic text.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func newError(k error, op, msg string, err error) *Error {
	return &Error{Kind: k, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	prefix := e.Kind.Error()
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	switch {
	case e.Msg != "":
		return prefix + ": " + e.Msg
	case e.Err != nil:
		return prefix + ": " + e.Err.Error()
	default:
		return prefix
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusError is returned by [Response.RaiseForStatus] for 4xx and 5xx
// responses.
type StatusError struct {
	StatusCode int
	Reason     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %d %s for url %s", ErrHTTP, e.StatusCode, e.Reason, e.URL)
	}
	return fmt.Sprintf("%v: %d for url %s", ErrHTTP, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrHTTP
}

// KindOf returns the most specific kind sentinel carried by err, or nil
// when err did not come from this package.
func KindOf(err error) error {
	for _, k := range []error{
		ErrInvalidArgument, ErrLimitExceeded, ErrInvalidRequest,
		ErrConnection, ErrTimeout, ErrTooManyRedirects, ErrHTTP, ErrIO,
		ErrRequest,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
