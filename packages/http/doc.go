// Package http is a session-oriented HTTP client built on net/http.
//
// A Session owns one transport, a cookie engine and a set of default
// headers and cookies. Every Send rebuilds the full transport
// configuration before the exchange, so options set for one request
// never leak into the next:
//
//	s, err := http.NewSession(http.WithDefaultHeaders(defaults))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	resp, err := s.Get("https://example.com/items", http.WithParam("page", "2"))
//	if err != nil {
//		return err // ErrConnection, ErrTimeout, ErrTooManyRedirects or ErrRequest
//	}
//	if err := resp.RaiseForStatus(); err != nil {
//		return err
//	}
//
// Transport failures are returned as *Error values whose kind can be
// matched with errors.Is. A 4xx or 5xx response is not an error until
// RaiseForStatus is called.
//
// A Session serves one caller at a time. Use a Pool to share sessions
// between goroutines.
package http
