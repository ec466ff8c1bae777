// Package gateway implements the edge cache in front of the knowledge-graph
// API origin.
//
// Each request is classified by path. Non-cacheable requests are forwarded to
// the origin verbatim. Cacheable GET requests are answered from the store when
// possible; otherwise the origin response is returned at once and a stamped
// copy is written to the store in the background.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/kg-edge-gateway/pkg/cache"
	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
	"github.com/Sternrassler/kg-edge-gateway/pkg/origin"
	"github.com/Sternrassler/kg-edge-gateway/pkg/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Dispatch outcomes for metrics and access logs.
const (
	outcomeForward  = "forward"
	outcomeBypass   = "bypass"
	outcomeHit      = "hit"
	outcomeMiss     = "miss"
	outcomeUncached = "uncached"
	outcomeError    = "error"
)

var dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kg_edge_dispatch_total",
	Help: "Total gateway dispatches by route and outcome",
}, []string{"route", "outcome"})

// Origin is the upstream the gateway sends requests to.
type Origin interface {
	// Forward sends the request with method, headers and body.
	Forward(r *http.Request) (*http.Response, error)

	// Fetch sends the request with method and headers only.
	Fetch(r *http.Request) (*http.Response, error)
}

// Config holds the gateway dependencies.
type Config struct {
	// Table classifies request paths (required)
	Table *policy.Table

	// Store holds cached responses (required)
	Store cache.Store

	// Origin serves everything the store cannot (required)
	Origin Origin

	// KeyPrefix namespaces store keys (default: cache.DefaultKeyPrefix)
	KeyPrefix string

	// Logger overrides the component logger (optional)
	Logger *zerolog.Logger

	// Now overrides the clock (optional)
	Now func() time.Time
}

// Gateway dispatches requests between the cache store and the origin.
type Gateway struct {
	table     *policy.Table
	store     cache.Store
	origin    Origin
	keyPrefix string
	now       func() time.Time
	logger    zerolog.Logger
	pending   *Pending
}

var _ http.Handler = (*Gateway)(nil)

// New creates a new gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("policy table is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if cfg.Origin == nil {
		return nil, fmt.Errorf("origin is required")
	}

	g := &Gateway{
		table:     cfg.Table,
		store:     cfg.Store,
		origin:    cfg.Origin,
		keyPrefix: cfg.KeyPrefix,
		now:       cfg.Now,
		pending:   &Pending{},
	}
	if g.keyPrefix == "" {
		g.keyPrefix = cache.DefaultKeyPrefix
	}
	if g.now == nil {
		g.now = time.Now
	}
	if cfg.Logger != nil {
		g.logger = *cfg.Logger
	} else {
		g.logger = logging.NewLogger(logging.ComponentGateway)
	}

	return g, nil
}

// Pending returns the background cache writes still in flight. The shutdown
// path drains it after the server stops accepting requests.
func (g *Gateway) Pending() *Pending {
	return g.pending
}

// Dispatch produces the response for r. The returned error is a hard origin
// failure; origin responses with error status codes are returned as they are.
func (g *Gateway) Dispatch(r *http.Request) (*http.Response, error) {
	// Classification, key and origin target all see the resolved path
	if clean := cleanPath(r.URL.Path); clean != r.URL.Path {
		r = r.Clone(r.Context())
		r.URL.Path = clean
		r.URL.RawPath = ""
	}

	decision := g.table.Classify(r.URL.Path)
	route := routeLabel(decision)
	r = r.WithContext(origin.WithRoute(r.Context(), route))

	if !decision.Cacheable {
		return g.forward(r, route, outcomeForward)
	}
	// Only GET reads are served from or written to the cache
	if r.Method != http.MethodGet {
		return g.forward(r, route, outcomeBypass)
	}

	key := cache.KeyFromURL(g.keyPrefix, r.URL).String()

	entry, err := g.store.Get(r.Context(), key)
	switch {
	case err == nil:
		dispatchTotal.WithLabelValues(route, outcomeHit).Inc()
		return g.hit(r, entry), nil
	case !errors.Is(err, cache.ErrCacheMiss):
		g.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("Cache read failed, fetching from origin")
	}

	resp, err := g.origin.Fetch(r)
	if err != nil {
		dispatchTotal.WithLabelValues(route, outcomeError).Inc()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		dispatchTotal.WithLabelValues(route, outcomeUncached).Inc()
		return resp, nil
	}

	if err := g.miss(r, resp, key, decision); err != nil {
		dispatchTotal.WithLabelValues(route, outcomeError).Inc()
		return nil, err
	}
	dispatchTotal.WithLabelValues(route, outcomeMiss).Inc()
	return resp, nil
}

// hit rebuilds the stored response. Stored headers, including the original
// Cache-Control and X-Cached-At, pass through; X-Cache-Status is replaced.
func (g *Gateway) hit(r *http.Request, entry *cache.Entry) *http.Response {
	resp := cache.EntryToResponse(entry, r)
	resp.Header.Set(HeaderCacheStatus, CacheStatusHit)
	resp.Header.Set(HeaderCacheAge, FormatAge(entry.Age(g.now())))
	return resp
}

// miss annotates a successful origin response and schedules the store write.
// The body is read once; resp keeps one copy and the stored entry the other.
func (g *Gateway) miss(r *http.Request, resp *http.Response, key string, decision policy.Decision) error {
	now := g.now()
	resp.Header.Set(HeaderCacheControl, cacheControl(decision.MaxAge()))

	entry, err := cache.ResponseToEntry(resp, now, decision.TTL)
	if err != nil {
		return fmt.Errorf("read origin response for %s: %w", r.URL.Path, err)
	}
	entry.Headers.Set(HeaderCacheStatus, CacheStatusMiss)
	entry.Headers.Set(HeaderCachedAt, now.UTC().Format(CachedAtFormat))
	resp.Header.Set(HeaderCacheStatus, CacheStatusMiss)

	ttl := decision.TTL
	started := g.pending.Go(r.Context(), func(ctx context.Context) {
		if err := g.store.Put(ctx, key, entry, ttl); err != nil {
			cache.CacheWrites.WithLabelValues("error").Inc()
			g.logger.Warn().
				Err(err).
				Str("key", key).
				Msg("Cache write failed")
			return
		}
		cache.CacheWrites.WithLabelValues("ok").Inc()
		g.logger.Debug().
			Str("key", key).
			Dur("ttl", ttl).
			Int("bytes", len(entry.Body)).
			Msg("Cached response")
	})
	if !started {
		cache.CacheWrites.WithLabelValues("skipped").Inc()
		g.logger.Debug().
			Str("key", key).
			Msg("Cache write skipped, shutting down")
	}
	return nil
}

func (g *Gateway) forward(r *http.Request, route, outcome string) (*http.Response, error) {
	resp, err := g.origin.Forward(r)
	if err != nil {
		outcome = outcomeError
	}
	dispatchTotal.WithLabelValues(route, outcome).Inc()
	return resp, err
}

// ServeHTTP writes the dispatch result to w. A hard origin failure is logged
// and answered with an empty 502.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := g.Dispatch(r)
	if err != nil {
		event := g.logger.Error()
		if errors.Is(err, context.Canceled) {
			event = g.logger.Debug()
		}
		event.Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Origin request failed")
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	if err := writeResponse(w, resp); err != nil {
		g.logger.Debug().
			Err(err).
			Str("path", r.URL.Path).
			Msg("Response copy aborted")
	}
}

func writeResponse(w http.ResponseWriter, resp *http.Response) error {
	header := w.Header()
	for key, vals := range resp.Header {
		header[key] = append([]string(nil), vals...)
	}
	origin.RemoveHopByHop(header)
	if resp.ContentLength >= 0 && bodyAllowed(resp.StatusCode) {
		header.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)

	if resp.Body == nil {
		return nil
	}
	if resp.ContentLength >= 0 {
		_, err := io.Copy(w, resp.Body)
		return err
	}
	return copyFlushing(w, resp.Body)
}

// copyFlushing streams a body of unknown length, flushing after every read so
// event streams reach the caller as they are produced.
func copyFlushing(w http.ResponseWriter, body io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// cleanPath resolves dot segments and repeated slashes, keeping a trailing
// slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if strings.HasSuffix(p, "/") && np != "/" {
		np += "/"
	}
	return np
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

func routeLabel(d policy.Decision) string {
	if d.Rule == "" {
		return "default"
	}
	return d.Rule
}
