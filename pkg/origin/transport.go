package origin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog"
)

// NewTransport returns a pooled *http.Transport for the origin. When resolver
// is non-nil, host lookups go through the DNS cache and each resolved address
// is tried in turn.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 64,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}
	if resolver == nil {
		t.DialContext = dialer.DialContext
		return t
	}

	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		var errs []error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
		}
		return nil, errors.Join(errs...)
	}
	return t
}

// RefreshDNS re-resolves cached hosts every interval and drops unused ones
// until ctx is done. It always returns nil.
func RefreshDNS(ctx context.Context, resolver *dnscache.Resolver, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			resolver.Refresh(true)
			logger.Debug().Msg("DNS cache refreshed")
		}
	}
}
