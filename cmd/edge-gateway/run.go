package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/kg-edge-gateway/pkg/cache"
	"github.com/Sternrassler/kg-edge-gateway/pkg/config"
	"github.com/Sternrassler/kg-edge-gateway/pkg/gateway"
	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
	"github.com/Sternrassler/kg-edge-gateway/pkg/origin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// app is the wired gateway process.
type app struct {
	cfg      *config.Config
	gateway  *gateway.Gateway
	store    *storeHandle
	resolver *dnscache.Resolver
	logger   zerolog.Logger
}

// storeHandle is the configured cache store plus its readiness probe.
type storeHandle struct {
	cache.Store
	backend string
	ping    func(ctx context.Context) error
	close   func() error
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	gatewayLn, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	var adminLn net.Listener
	if cfg.Admin.Addr != "" {
		adminLn, err = net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			gatewayLn.Close()
			return fmt.Errorf("listen %s: %w", cfg.Admin.Addr, err)
		}
	}

	a.logger.Info().
		Str("version", version).
		Str("addr", gatewayLn.Addr().String()).
		Str("admin_addr", cfg.Admin.Addr).
		Str("origin", cfg.Origin.BaseURL).
		Str("cache_backend", a.store.backend).
		Msg("Edge gateway ready")

	return a.serve(ctx, gatewayLn, adminLn)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(logging.ComponentGateway),
	}

	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}

	a.store, err = newStore(ctx, cfg.Cache, logging.NewLogger(logging.ComponentCache))
	if err != nil {
		return nil, err
	}

	if cfg.Origin.DNSCache {
		a.resolver = &dnscache.Resolver{}
	}
	originClient, err := origin.New(origin.Config{
		BaseURL:  cfg.Origin.BaseURL,
		Resolver: a.resolver,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.gateway, err = gateway.New(gateway.Config{
		Table:     table,
		Store:     a.store,
		Origin:    originClient,
		KeyPrefix: cfg.Cache.KeyPrefix,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// serve runs the gateway and admin listeners until ctx is done, then shuts
// both down and drains pending cache writes within the shutdown timeout.
func (a *app) serve(ctx context.Context, gatewayLn, adminLn net.Listener) error {
	servers := []*http.Server{{
		Handler:           gateway.AccessLog(logging.NewLogger(logging.ComponentAccess), a.gateway),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
	}}
	listeners := []net.Listener{gatewayLn}

	if adminLn != nil {
		servers = append(servers, &http.Server{
			Handler:           newAdminRouter(a.store.ping),
			ReadHeaderTimeout: 5 * time.Second,
		})
		listeners = append(listeners, adminLn)
	}

	g, gctx := errgroup.WithContext(ctx)

	for i, srv := range servers {
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}

	if a.resolver != nil {
		g.Go(func() error {
			return origin.RefreshDNS(gctx, a.resolver, a.cfg.Origin.DNSRefreshInterval, a.logger)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown: %w", err))
			}
		}

		// Shutdown may time out with handlers still waiting on the origin;
		// their cache writes are refused from here on
		pending := a.gateway.Pending()
		pending.Close()
		if err := pending.Drain(shutdownCtx); err != nil {
			a.logger.Warn().
				Err(err).
				Int("pending", pending.Len()).
				Msg("Abandoning pending cache writes")
			errs = append(errs, fmt.Errorf("drain cache writes: %w", err))
		} else {
			a.logger.Info().Msg("Pending cache writes drained")
		}

		return errors.Join(errs...)
	})

	return g.Wait()
}

func (a *app) close() {
	if a.store != nil && a.store.close != nil {
		if err := a.store.close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close cache store")
		}
	}
}

// newStore builds the configured cache store. An unreachable Redis is logged
// but does not stop startup; the gateway serves from the origin until it
// recovers.
func newStore(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (*storeHandle, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store, err := cache.NewMemoryStore(cfg.Memory.MaxSize, cfg.Memory.MaxTTL)
		if err != nil {
			return nil, fmt.Errorf("create memory store: %w", err)
		}
		return &storeHandle{
			Store:   store,
			backend: cfg.Backend,
			ping:    func(context.Context) error { return nil },
		}, nil

	case config.BackendRedis:
		opts, err := cfg.Redis.Options()
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)
		store := cache.NewRedisStore(client, cache.WithLocalCache(cfg.Redis.LocalCacheSize, cfg.Redis.LocalCacheTTL))

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Error().Err(err).Str("addr", opts.Addr).Msg("Redis not reachable, serving from origin until it is")
		} else {
			logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
		}

		return &storeHandle{
			Store:   store,
			backend: cfg.Backend,
			ping:    store.Ping,
			close:   client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
