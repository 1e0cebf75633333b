package http

import (
	"context"
	"net"
	"sync"
	"time"
)

// dnsCache remembers resolved addresses for ttl so repeated requests to
// the same host skip the resolver.
type dnsCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]dnsEntry
	resolver *net.Resolver
	now      func() time.Time
}

type dnsEntry struct {
	addrs   []string
	expires time.Time
}

func newDNSCache(ttl time.Duration) *dnsCache {
	return &dnsCache{
		ttl:      ttl,
		entries:  make(map[string]dnsEntry),
		resolver: net.DefaultResolver,
		now:      time.Now,
	}
}

func (c *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	c.mu.Lock()
	e, ok := c.entries[host]
	c.mu.Unlock()
	if ok && c.now().Before(e.expires) {
		return e.addrs, nil
	}

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}

	c.mu.Lock()
	c.entries[host] = dnsEntry{addrs: addrs, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return addrs, nil
}

// dialContext resolves through the cache and dials each address in turn.
func (c *dnsCache) dialContext(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil || c.ttl <= 0 || net.ParseIP(host) != nil {
			return d.DialContext(ctx, network, addr)
		}

		addrs, err := c.lookup(ctx, host)
		if err != nil {
			return nil, err
		}

		var lastErr error
		for _, a := range addrs {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(a, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
