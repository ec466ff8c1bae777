// Package origin forwards gateway requests to the knowledge-graph API origin.
//
// The client never retries and sets no request timeout. Redirects are returned
// to the caller instead of being followed.
package origin

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"
)

// Config holds the origin client configuration.
type Config struct {
	// BaseURL is the absolute origin URL, e.g. "http://kg-api:8000".
	// A path component is prepended to every forwarded path.
	BaseURL string

	// Resolver enables cached DNS lookups for the origin host (optional).
	Resolver *dnscache.Resolver

	// Transport overrides the transport built by NewTransport (optional).
	Transport http.RoundTripper

	// Logger overrides the component logger (optional).
	Logger *zerolog.Logger
}

// Client sends requests to the origin.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("origin base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("origin base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}
	base.RawQuery = ""
	base.Fragment = ""

	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(cfg.Resolver)
	}

	logger := logging.NewLogger(logging.ComponentOrigin)
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		base: base,
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}, nil
}

// Forward sends r to the origin verbatim: method, headers and body.
func (c *Client) Forward(r *http.Request) (*http.Response, error) {
	return c.do(r, true)
}

// Fetch sends r to the origin with method and headers only. The request body
// is not sent.
func (c *Client) Fetch(r *http.Request) (*http.Response, error) {
	return c.do(r, false)
}

// TargetURL maps an inbound request URL onto the origin: scheme and host of
// the base URL, base path joined with the request path, request raw query.
func (c *Client) TargetURL(u *url.URL) *url.URL {
	target := *c.base
	target.Path = joinPath(c.base.Path, u.Path)
	if c.base.RawPath != "" || u.RawPath != "" {
		target.RawPath = joinPath(c.base.EscapedPath(), u.EscapedPath())
	}
	target.RawQuery = u.RawQuery
	return &target
}

func (c *Client) do(r *http.Request, withBody bool) (*http.Response, error) {
	ctx := r.Context()
	route := routeFromContext(ctx)
	target := c.TargetURL(r.URL).String()

	var body io.Reader
	if withBody && r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, &Error{Method: r.Method, URL: target, Err: err}
	}
	if body != nil {
		outReq.ContentLength = r.ContentLength
	}
	outReq.Header = r.Header.Clone()
	if outReq.Header == nil {
		outReq.Header = make(http.Header)
	}
	RemoveHopByHop(outReq.Header)

	c.logger.Debug().
		Str("method", r.Method).
		Str("url", target).
		Str("route", route).
		Bool("with_body", body != nil).
		Msg("Sending origin request")

	start := time.Now()
	resp, err := c.httpClient.Do(outReq)
	originRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

	if err != nil {
		originRequestsTotal.WithLabelValues(route, "network_error").Inc()
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &Error{Method: r.Method, URL: target, Err: err}
	}

	originRequestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()
	c.logger.Debug().
		Str("url", target).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Origin responded")

	return resp, nil
}

func joinPath(a, b string) string {
	if a == "" || a == "/" {
		if b == "" {
			return "/"
		}
		return b
	}
	if b == "" {
		return a
	}
	switch {
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	}
	return a + b
}
