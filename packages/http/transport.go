package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultConnectTimeout bounds DNS resolution plus the TCP and TLS
	// handshakes.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultMaxConnsPerHost caps open connections per host.
	DefaultMaxConnsPerHost = 5
	// DefaultDNSCacheTTL is how long resolved addresses are reused.
	DefaultDNSCacheTTL = 300 * time.Second
	// DefaultMaxBodySize is the largest response body accepted.
	DefaultMaxBodySize int64 = 100 << 20

	safetyMaxRedirects = 10
	bufferSize         = 16 << 10
	keepAliveInterval  = 60 * time.Second
	idleConnTimeout    = 90 * time.Second
)

var allowedProtocols = []string{"http", "https"}

var (
	errTooManyRedirects    = errors.New("maximum redirects followed")
	errUnsupportedProtocol = errors.New("protocol not supported or disabled")
	errCaptureFull         = errors.New("capture buffer full")
)

// Settings are the session-wide performance options reapplied to the
// transport on every send.
type Settings struct {
	ConnectTimeout time.Duration
	// TransferTimeout bounds the whole exchange. Zero means no limit.
	TransferTimeout time.Duration
	KeepAlive       bool
	MaxConnsPerHost int
	DNSCacheTTL     time.Duration
	Compression     bool
	MaxBodySize     int64
}

func DefaultSettings() Settings {
	return Settings{
		ConnectTimeout:  DefaultConnectTimeout,
		KeepAlive:       true,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		DNSCacheTTL:     DefaultDNSCacheTTL,
		MaxBodySize:     DefaultMaxBodySize,
	}
}

type sinkKind int

const (
	sinkMemory sinkKind = iota
	sinkFile
	sinkCallback
	sinkNone
)

// handleConfig is everything the handle needs for one exchange. It is
// rebuilt from scratch before every send so nothing leaks between calls.
type handleConfig struct {
	maxBodySize  int64
	maxRedirects int
	bufferSize   int
	verifyTLS    bool
	protocols    []string

	connectTimeout  time.Duration
	transferTimeout time.Duration
	keepAlive       bool
	maxConnsPerHost int
	dnsCacheTTL     time.Duration
	compression     bool

	url             string
	method          string
	payload         []byte
	payloadReader   io.Reader
	contentType     string
	headers         http.Header
	cookies         []*http.Cookie
	auth            Auth
	followRedirects bool
	proxy           string

	sink    sinkKind
	file    io.Writer
	onChunk func([]byte) error
}

// transportKey holds the settings baked into a cached *http.Transport.
type transportKey struct {
	verifyTLS       bool
	proxy           string
	connectTimeout  time.Duration
	keepAlive       bool
	maxConnsPerHost int
	compression     bool
	dnsCacheTTL     time.Duration
}

// exchange is the raw outcome of one perform call.
type exchange struct {
	status       int
	reason       string
	proto        string
	header       http.Header
	effectiveURL string
	hops         []string
	body         []byte
	truncated    bool
	decompressed bool
	elapsed      time.Duration
}

// handle owns the transport engine of a session: the cached transport, its
// DNS cache and the persistent cookie jar.
type handle struct {
	cfg handleConfig

	jar     *cookieJar
	dns     *dnsCache
	limiter *rate.Limiter
	logger  *slog.Logger
	custom  http.RoundTripper

	transport *http.Transport
	key       transportKey
}

func newHandle(logger *slog.Logger) *handle {
	return &handle{
		jar:    newCookieJar(),
		dns:    newDNSCache(DefaultDNSCacheTTL),
		logger: logger,
	}
}

// reset drops every option left over from the previous exchange.
func (h *handle) reset() {
	h.cfg = handleConfig{}
}

func (h *handle) applySafety() {
	h.cfg.maxBodySize = DefaultMaxBodySize
	h.cfg.maxRedirects = safetyMaxRedirects
	h.cfg.bufferSize = bufferSize
	h.cfg.verifyTLS = true
	h.cfg.protocols = allowedProtocols
	h.cfg.followRedirects = true
}

func (h *handle) applyPerformance(s Settings) {
	h.cfg.connectTimeout = s.ConnectTimeout
	h.cfg.transferTimeout = s.TransferTimeout
	h.cfg.keepAlive = s.KeepAlive
	h.cfg.maxConnsPerHost = s.MaxConnsPerHost
	h.cfg.dnsCacheTTL = s.DNSCacheTTL
	h.cfg.compression = s.Compression
	if s.MaxBodySize > 0 {
		h.cfg.maxBodySize = s.MaxBodySize
	}
}

func (h *handle) protocolAllowed(scheme string) bool {
	for _, p := range h.cfg.protocols {
		if strings.EqualFold(p, scheme) {
			return true
		}
	}
	return false
}

func (h *handle) roundTripper() (http.RoundTripper, error) {
	rt := h.custom
	if rt == nil {
		t, err := h.ensureTransport()
		if err != nil {
			return nil, err
		}
		rt = t
	}
	if h.limiter != nil {
		rt = &throttle{limiter: h.limiter, next: rt, logger: h.logger}
	}
	return rt, nil
}

// ensureTransport returns the cached transport, rebuilding it when a
// setting baked into it has changed.
func (h *handle) ensureTransport() (*http.Transport, error) {
	key := transportKey{
		verifyTLS:       h.cfg.verifyTLS,
		proxy:           h.cfg.proxy,
		connectTimeout:  h.cfg.connectTimeout,
		keepAlive:       h.cfg.keepAlive,
		maxConnsPerHost: h.cfg.maxConnsPerHost,
		compression:     h.cfg.compression,
		dnsCacheTTL:     h.cfg.dnsCacheTTL,
	}
	if h.transport != nil && key == h.key {
		return h.transport, nil
	}

	proxy := http.ProxyFromEnvironment
	if key.proxy != "" {
		raw := key.proxy
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := neturl.Parse(raw)
		if err != nil {
			return nil, newError(ErrRequest, "send", fmt.Sprintf("invalid proxy %q", key.proxy), err)
		}
		proxy = http.ProxyURL(u)
	}

	if h.dns.ttl != key.dnsCacheTTL {
		h.dns = newDNSCache(key.dnsCacheTTL)
	}
	dialer := &net.Dialer{Timeout: key.connectTimeout, KeepAlive: -1}
	if key.keepAlive {
		dialer.KeepAlive = keepAliveInterval
	}

	t := &http.Transport{
		Proxy:                 proxy,
		DialContext:           h.dns.dialContext(dialer),
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !key.verifyTLS}, //nolint:gosec // opt-in per request
		TLSHandshakeTimeout:   key.connectTimeout,
		MaxConnsPerHost:       key.maxConnsPerHost,
		MaxIdleConnsPerHost:   key.maxConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		DisableCompression:    !key.compression,
		ForceAttemptHTTP2:     true,
		ReadBufferSize:        bufferSize,
		WriteBufferSize:       bufferSize,
		ExpectContinueTimeout: time.Second,
	}
	if h.transport != nil {
		h.transport.CloseIdleConnections()
	}
	h.transport = t
	h.key = key
	h.logger.Debug("transport rebuilt", "verifyTLS", key.verifyTLS, "proxy", key.proxy, "maxConnsPerHost", key.maxConnsPerHost)
	return t, nil
}

func (h *handle) close() {
	if h.transport != nil {
		h.transport.CloseIdleConnections()
		h.transport = nil
	}
}

// perform runs the configured exchange. On failure the returned exchange
// still carries the elapsed time.
func (h *handle) perform(ctx context.Context) (*exchange, error) {
	ex := &exchange{}
	start := time.Now()
	err := h.run(ctx, ex)
	ex.elapsed = time.Since(start)
	return ex, err
}

func (h *handle) run(ctx context.Context, ex *exchange) error {
	u, err := neturl.Parse(h.cfg.url)
	if err != nil {
		return newError(ErrRequest, "send", "URL using bad/illegal format", err)
	}
	if !h.protocolAllowed(u.Scheme) {
		return newError(ErrRequest, "send", fmt.Sprintf("protocol %q not supported or disabled", u.Scheme), errUnsupportedProtocol)
	}
	rt, err := h.roundTripper()
	if err != nil {
		return err
	}

	client := &http.Client{
		Transport:     rt,
		Timeout:       h.cfg.transferTimeout,
		Jar:           &requestJar{base: h.jar, host: u.Hostname(), extra: h.cfg.cookies},
		CheckRedirect: h.checkRedirect(ex),
	}

	req, err := h.newRequest(ctx, u.String(), "")
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err == nil && h.cfg.auth.Type == AuthDigest && resp.StatusCode == http.StatusUnauthorized {
		resp, err = h.retryDigest(ctx, client, resp)
	}
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	ex.status = resp.StatusCode
	ex.reason = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	ex.proto = resp.Proto
	ex.header = resp.Header
	ex.effectiveURL = resp.Request.URL.String()
	ex.decompressed = resp.Uncompressed

	return h.readBody(resp, ex)
}

func (h *handle) newRequest(ctx context.Context, target, authorization string) (*http.Request, error) {
	var body io.Reader
	switch {
	case h.cfg.payloadReader != nil:
		body = h.cfg.payloadReader
	case len(h.cfg.payload) > 0:
		body = bytes.NewReader(h.cfg.payload)
	}

	req, err := http.NewRequestWithContext(ctx, h.cfg.method, target, body)
	if err != nil {
		return nil, newError(ErrRequest, "send", err.Error(), err)
	}
	req.Header = h.cfg.headers.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if h.cfg.contentType != "" {
		req.Header.Set("Content-Type", h.cfg.contentType)
	}
	if h.cfg.auth.Type == AuthBasic {
		req.SetBasicAuth(h.cfg.auth.Username, h.cfg.auth.Password)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req, nil
}

// retryDigest answers a digest challenge once. The 401 is handed back when
// the body cannot be replayed or no usable challenge was offered.
func (h *handle) retryDigest(ctx context.Context, client *http.Client, resp *http.Response) (*http.Response, error) {
	if h.cfg.payloadReader != nil {
		return resp, nil
	}
	var challenge digestChallenge
	var ok bool
	for _, v := range resp.Header.Values("WWW-Authenticate") {
		if challenge, ok = parseDigestChallenge(v); ok {
			break
		}
	}
	if !ok {
		return resp, nil
	}

	cnonce, err := newCnonce()
	if err != nil {
		return resp, nil
	}
	target := resp.Request.URL
	authz, err := challenge.authorization(h.cfg.method, target.RequestURI(), h.cfg.payload, h.cfg.auth.Username, h.cfg.auth.Password, cnonce, 1)
	if err != nil {
		h.logger.Debug("digest challenge not answered", "error", err)
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	req, err := h.newRequest(ctx, target.String(), authz)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

func (h *handle) checkRedirect(ex *exchange) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !h.cfg.followRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > h.cfg.maxRedirects {
			return errTooManyRedirects
		}
		if !h.protocolAllowed(req.URL.Scheme) {
			return errUnsupportedProtocol
		}
		ex.hops = append(ex.hops, req.URL.String())
		return nil
	}
}

func (h *handle) readBody(resp *http.Response, ex *exchange) error {
	if h.cfg.sink == sinkNone {
		return nil
	}
	if resp.ContentLength > h.cfg.maxBodySize {
		return newError(ErrRequest, "send", fmt.Sprintf("maximum file size exceeded: %d bytes", resp.ContentLength), nil)
	}

	var write func([]byte) error
	switch h.cfg.sink {
	case sinkFile:
		write = func(p []byte) error {
			_, err := h.cfg.file.Write(p)
			return err
		}
	case sinkCallback:
		write = h.cfg.onChunk
	default:
		write = func(p []byte) error {
			room := h.cfg.maxBodySize - int64(len(ex.body))
			if int64(len(p)) > room {
				ex.body = append(ex.body, p[:room]...)
				ex.truncated = true
				return errCaptureFull
			}
			ex.body = append(ex.body, p...)
			return nil
		}
	}

	buf := make([]byte, h.cfg.bufferSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if err := write(buf[:n]); err != nil {
				if errors.Is(err, errCaptureFull) {
					return nil
				}
				return newError(ErrRequest, "send", "failed writing received data", err)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return classifyTransportError(rerr)
		}
	}
}

// classifyTransportError maps a net/http failure onto the error kinds.
func classifyTransportError(err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	msg := err.Error()
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		msg = urlErr.Err.Error()
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, errTooManyRedirects):
		return newError(ErrTooManyRedirects, "send", msg, err)
	case errors.Is(err, errUnsupportedProtocol):
		return newError(ErrRequest, "send", msg, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return newError(ErrTimeout, "send", msg, err)
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr) && opErr.Op == "dial",
		errors.Is(err, syscall.ECONNREFUSED):
		return newError(ErrConnection, "send", msg, err)
	default:
		return newError(ErrRequest, "send", msg, err)
	}
}
