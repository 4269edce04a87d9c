package probe

import (
	"context"
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// dnsCache memoizes hostname lookups for a short TTL so a fleet of checks
// against the same hosts does not hammer the resolver every tick.
type dnsCache struct {
	cache    *ttlcache.Cache[string, []string]
	resolver *net.Resolver
	dialer   *net.Dialer
}

func newDNSCache(ttl time.Duration) *dnsCache {
	c := &dnsCache{
		cache: ttlcache.New[string, []string](
			ttlcache.WithTTL[string, []string](ttl),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		),
		resolver: net.DefaultResolver,
		dialer:   &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
	}
	go c.cache.Start()
	return c
}

func (c *dnsCache) stop() {
	c.cache.Stop()
}

// DialContext resolves through the cache and dials the first address that
// answers. Literal IPs skip resolution entirely.
func (c *dnsCache) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	if ip := net.ParseIP(host); ip != nil {
		return c.dialer.DialContext(ctx, network, addr)
	}

	addrs, err := c.lookup(ctx, host)
	if err != nil {
		return nil, err
	}

	var dialErr error
	for _, a := range addrs {
		conn, err := c.dialer.DialContext(ctx, network, net.JoinHostPort(a, port))
		if err == nil {
			return conn, nil
		}
		dialErr = err
	}
	return nil, dialErr
}

func (c *dnsCache) lookup(ctx context.Context, host string) ([]string, error) {
	if item := c.cache.Get(host); item != nil {
		return item.Value(), nil
	}

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	c.cache.Set(host, addrs, ttlcache.DefaultTTL)
	return addrs, nil
}
