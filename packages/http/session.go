package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Event describes one finished send. Response is nil when Err is set.
type Event struct {
	SessionID string
	Request   *Request
	Response  *Response
	Err       error
	Elapsed   time.Duration
}

// Hook observes every send that reached the transport.
type Hook interface {
	AfterSend(ctx context.Context, ev Event)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, ev Event)

func (f HookFunc) AfterSend(ctx context.Context, ev Event) { f(ctx, ev) }

// Session owns one transport handle plus the defaults merged into every
// request it sends. A Session is meant for one caller at a time;
// concurrent calls serialize on its lock.
type Session struct {
	mu sync.Mutex

	id             uuid.UUID
	h              *handle
	defaultHeaders *Headers
	defaultCookies *Cookies
	cookieJarPath  string
	settings       Settings
	hooks          []Hook
	closed         bool

	// configuration as built by NewSession, restored by Reset
	baseSettings Settings
	baseHeaders  *Headers
	baseCookies  *Cookies

	stats  *stats
	log    *slog.Logger
	tracer trace.Tracer
}

// Option configures a Session built by NewSession.
type Option func(*Session) error

// NewSession creates a session with its transport handle ready to use.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		id:             uuid.New(),
		defaultHeaders: NewHeaders(),
		defaultCookies: NewCookies(nil),
		settings:       DefaultSettings(),
		stats:          newStats(),
		log:            slog.Default(),
		tracer:         noop.NewTracerProvider().Tracer("no-op tracer"),
	}
	s.h = newHandle(s.log)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.With("session", s.id.String())
	s.h.logger = s.log
	s.baseSettings = s.settings
	s.baseHeaders = s.defaultHeaders.Clone()
	s.baseCookies = s.defaultCookies.Clone()

	s.log.Debug("session created", "connectTimeout", s.settings.ConnectTimeout.String(), "maxConnsPerHost", s.settings.MaxConnsPerHost)
	return s, nil
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Session) error {
		if tracer != nil {
			s.tracer = tracer
		}
		return nil
	}
}

func WithDefaultHeaders(h *Headers) Option {
	return func(s *Session) error {
		s.defaultHeaders = h.Clone()
		return nil
	}
}

func WithDefaultCookies(c *Cookies) Option {
	return func(s *Session) error {
		s.defaultCookies = c.Clone()
		return nil
	}
}

// WithCookieJar loads cookies from a Netscape cookie file and saves them
// back on Close.
func WithCookieJar(path string) Option {
	return func(s *Session) error {
		return s.loadCookieJar(path)
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) error {
		s.settings.ConnectTimeout = d
		return nil
	}
}

func WithTransferTimeout(d time.Duration) Option {
	return func(s *Session) error {
		s.settings.TransferTimeout = d
		return nil
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(s *Session) error {
		if n <= 0 {
			return newError(ErrInvalidArgument, "session", "max connections per host must be positive", nil)
		}
		s.settings.MaxConnsPerHost = n
		return nil
	}
}

func WithKeepAlive(on bool) Option {
	return func(s *Session) error {
		s.settings.KeepAlive = on
		return nil
	}
}

func WithCompression(on bool) Option {
	return func(s *Session) error {
		s.settings.Compression = on
		return nil
	}
}

// WithDNSCacheTTL sets how long resolved addresses are reused. Zero turns
// the cache off.
func WithDNSCacheTTL(d time.Duration) Option {
	return func(s *Session) error {
		s.settings.DNSCacheTTL = d
		return nil
	}
}

func WithMaxBodySize(n int64) Option {
	return func(s *Session) error {
		if n <= 0 {
			return newError(ErrInvalidArgument, "session", "max body size must be positive", nil)
		}
		s.settings.MaxBodySize = n
		return nil
	}
}

// WithThrottle limits the session to rps exchanges per second.
func WithThrottle(rps float64, burst int) Option {
	return func(s *Session) error {
		l, err := newLimiter(rps, burst)
		if err != nil {
			return err
		}
		s.h.limiter = l
		return nil
	}
}

func WithHook(hook Hook) Option {
	return func(s *Session) error {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
		return nil
	}
}

// WithRoundTripper replaces the built-in transport. Connection settings
// then no longer apply.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(s *Session) error {
		s.h.custom = rt
		return nil
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id.String()
}

// Send performs req. See SendContext.
func (s *Session) Send(req *Request) (*Response, error) {
	return s.SendContext(context.Background(), req)
}

// SendContext performs req and returns the response. Only transport
// failures are errors; a 4xx or 5xx response is returned as-is. req is
// never modified.
func (s *Session) SendContext(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.h == nil {
		return nil, newError(ErrInvalidRequest, "send", "session is closed", nil)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.OutputPath != "" {
		if err := checkWritableDir(filepath.Dir(req.OutputPath)); err != nil {
			return nil, err
		}
	}

	ctx, span := s.tracer.Start(ctx, "reqx.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method()),
		attribute.String("http.url", req.URL),
		attribute.String("session.id", s.id.String()),
	)

	resp, elapsed, err := s.send(ctx, req)
	s.stats.record(elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Warn("request failed", "method", req.method(), "url", req.URL, "elapsed", elapsed.String(), "error", err)
	} else {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		s.log.Debug("request complete", "method", req.method(), "url", req.URL, "status", resp.StatusCode, "elapsed", elapsed.String())
	}

	for _, hook := range s.hooks {
		hook.AfterSend(ctx, Event{SessionID: s.id.String(), Request: req, Response: resp, Err: err, Elapsed: elapsed})
	}
	return resp, err
}

// send configures the handle from a clean slate and runs the exchange.
func (s *Session) send(ctx context.Context, req *Request) (*Response, time.Duration, error) {
	h := s.h
	h.reset()
	h.applySafety()
	h.applyPerformance(s.settings)

	target := ComposeURL(req.URL, req.Params)
	h.cfg.url = target
	h.cfg.method = req.method()

	switch {
	case len(req.Files) > 0:
		body, contentType, err := buildMultipartBody(req.Files, req.Params)
		if err != nil {
			return nil, 0, newError(ErrRequest, "send", err.Error(), err)
		}
		h.cfg.payload = body.Bytes()
		h.cfg.contentType = contentType
	case req.BodyReader != nil:
		h.cfg.payloadReader = req.BodyReader
	case len(req.Body) > 0:
		h.cfg.payload = req.Body
	}

	switch {
	case req.OutputPath != "":
		f, err := os.OpenFile(req.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, 0, newError(ErrIO, "send", fmt.Sprintf("cannot open output file %s", req.OutputPath), err)
		}
		defer f.Close()
		h.cfg.sink = sinkFile
		h.cfg.file = f
	case h.cfg.method == MethodHead:
		h.cfg.sink = sinkNone
	case req.OnChunk != nil:
		h.cfg.sink = sinkCallback
		h.cfg.onChunk = req.OnChunk
	default:
		h.cfg.sink = sinkMemory
	}

	headers := s.defaultHeaders.Clone()
	if err := headers.AddAll(req.Headers); err != nil {
		return nil, 0, err
	}
	h.cfg.headers = headers.Header()
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h.cfg.headers))

	cookies := s.defaultCookies.Clone()
	cookies.Merge(req.Cookies)
	for _, name := range cookies.Names() {
		value, _ := cookies.Get(name)
		h.cfg.cookies = append(h.cfg.cookies, &http.Cookie{Name: name, Value: value})
	}

	if req.Auth.Type != AuthNone {
		h.cfg.auth = req.Auth
	}

	h.cfg.followRedirects = req.Redirects.Allow()
	if h.cfg.followRedirects {
		h.cfg.maxRedirects = req.Redirects.MaxRedirects()
	}
	h.cfg.proxy = req.Proxy
	if req.InsecureSkipVerify {
		h.cfg.verifyTLS = false
	}
	if req.Timeout > 0 {
		h.cfg.transferTimeout = req.Timeout
	}

	ex, err := h.perform(ctx)
	if err != nil {
		return nil, ex.elapsed, err
	}

	resp := &Response{
		StatusCode:     ex.status,
		Reason:         ex.reason,
		Proto:          ex.proto,
		URL:            ex.effectiveURL,
		Redirected:     len(ex.hops) > 0,
		Headers:        captureHeaders(ex.header),
		Body:           ex.body,
		Truncated:      ex.truncated,
		Decompressed:   ex.decompressed,
		RequestURL:     target,
		RequestHeaders: headers,
		Elapsed:        ex.elapsed,
		History:        ex.hops,
		Timestamp:      time.Now(),
	}
	resp.Cookies = parseSetCookies(resp.Headers)
	if resp.Truncated {
		s.log.Warn("response body truncated", "url", target, "limit", h.cfg.maxBodySize)
	}
	return resp, ex.elapsed, nil
}

// captureHeaders turns the received header map into raw lines, names in
// sorted order. Lines the Header Set rejects are dropped.
func captureHeaders(h http.Header) *Headers {
	out := NewHeaders()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			_ = out.AddLine(name + ": " + v)
		}
	}
	return out
}

// parseSetCookies keeps the name and value of each Set-Cookie line. The
// name ends at the first '=' and the value at the first ';'.
func parseSetCookies(h *Headers) *Cookies {
	out := NewCookies(nil)
	for _, v := range h.Values("Set-Cookie") {
		name, rest, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		value, _, _ := strings.Cut(rest, ";")
		out.Add(name, strings.TrimSpace(value))
	}
	return out
}

func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return newError(ErrInvalidRequest, "send", fmt.Sprintf("output directory %s does not exist", dir), err)
	}
	if !info.IsDir() {
		return newError(ErrInvalidRequest, "send", fmt.Sprintf("output path parent %s is not a directory", dir), nil)
	}
	f, err := os.CreateTemp(dir, ".reqx-probe-*")
	if err != nil {
		return newError(ErrInvalidRequest, "send", fmt.Sprintf("output directory %s is not writable", dir), err)
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return nil
}

func (s *Session) Get(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodGet, url, opts)
}

func (s *Session) Post(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodPost, url, opts)
}

func (s *Session) Put(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodPut, url, opts)
}

func (s *Session) Delete(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodDelete, url, opts)
}

func (s *Session) Patch(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodPatch, url, opts)
}

func (s *Session) Head(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodHead, url, opts)
}

func (s *Session) Options(url string, opts ...RequestOption) (*Response, error) {
	return s.do(MethodOptions, url, opts)
}

func (s *Session) do(method, url string, opts []RequestOption) (*Response, error) {
	req, err := NewRequest(method, url, opts...)
	if err != nil {
		return nil, err
	}
	return s.Send(req)
}

// SetDefaultHeaders replaces the headers sent ahead of every request's own.
func (s *Session) SetDefaultHeaders(h *Headers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultHeaders = h.Clone()
}

func (s *Session) SetDefaultCookies(c *Cookies) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultCookies = c.Clone()
}

// SetCookieJar loads path into the session's cookie engine and saves the
// engine back to path on Close.
func (s *Session) SetCookieJar(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCookieJar(path)
}

func (s *Session) loadCookieJar(path string) error {
	if path == "" {
		return newError(ErrInvalidArgument, "cookie jar", "empty path", nil)
	}
	if err := s.h.jar.Load(path); err != nil {
		return newError(ErrIO, "cookie jar", err.Error(), err)
	}
	s.cookieJarPath = path
	return nil
}

func (s *Session) SetConnectTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.ConnectTimeout = d
}

func (s *Session) SetTransferTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.TransferTimeout = d
}

func (s *Session) SetMaxConnsPerHost(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.MaxConnsPerHost = n
}

func (s *Session) SetKeepAlive(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.KeepAlive = on
}

func (s *Session) SetCompression(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Compression = on
}

// Settings returns the performance settings applied on the next send.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Reset restores the settings, default headers and default cookies the
// session was created with. Stored cookies are dropped unless a cookie
// jar file is armed.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.baseSettings
	s.defaultHeaders = s.baseHeaders.Clone()
	s.defaultCookies = s.baseCookies.Clone()
	if s.cookieJarPath == "" && s.h != nil {
		s.h.jar = newCookieJar()
	}
}

// IsValid reports whether the session can still send.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.h != nil
}

// Close saves the cookie jar when one is armed and releases the
// transport. Further sends fail with ErrInvalidRequest.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.cookieJarPath != "" {
		if serr := s.h.jar.Save(s.cookieJarPath); serr != nil {
			err = newError(ErrIO, "cookie jar", serr.Error(), serr)
		}
	}
	s.h.close()
	s.log.Debug("session closed", "requests", s.stats.snapshot().Requests)
	return err
}

// RequestCount returns the number of sends that reached the transport,
// failed ones included.
func (s *Session) RequestCount() int64 {
	return s.stats.snapshot().Requests
}

func (s *Session) AverageResponseTime() time.Duration {
	return s.stats.snapshot().Average
}

func (s *Session) Stats() Stats {
	return s.stats.snapshot()
}

// ResetStats zeroes the request accounting.
func (s *Session) ResetStats() {
	s.stats.reset()
}
