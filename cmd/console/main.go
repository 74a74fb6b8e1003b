// Command console serves the milk shop operator console: the session gate,
// the paginated entity views and the write endpoints in front of the shop backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"milkadmin/internal/backend"
	"milkadmin/internal/catalog"
	"milkadmin/internal/console"
	"milkadmin/internal/platform/config"
	"milkadmin/internal/platform/health"
	"milkadmin/internal/platform/httpserver"
	"milkadmin/internal/platform/logger"
	"milkadmin/internal/platform/metrics"
	redisclient "milkadmin/internal/platform/redis"
	"milkadmin/internal/platform/tracer"
	"milkadmin/internal/session"
	sessionhandler "milkadmin/internal/session/handler"
	"milkadmin/internal/session/store"
	httptransport "milkadmin/internal/transport/http"
	"milkadmin/pkg/platform/circuit"
	"milkadmin/pkg/platform/middleware/metadata"
	"milkadmin/pkg/platform/middleware/request"
)

const poolStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("console stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("console stopped")
}

// run wires the console and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("initializing milkadmin console",
		"addr", cfg.Addr,
		"env", cfg.Environment,
		"backend", cfg.Backend.BaseURL,
		"token_store", cfg.Session.TokenStore,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)
	trace := tracer.NewOTel()

	healthHandler := health.New(cfg.Environment)

	tokens, closeStore, err := buildTokenStore(ctx, cfg, reg, healthHandler, log)
	if err != nil {
		return err
	}
	defer closeStore()

	feed := backend.NewFeed(cfg.NotificationLimit, backend.WithFeedLogger(log))
	breaker := circuit.New("shop-backend", circuit.WithFailureThreshold(cfg.Backend.BreakerThreshold))
	backendMetrics := backend.NewMetrics(reg)
	backendCfg := backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout}
	shared := []backend.Option{
		backend.WithLogger(log),
		backend.WithNotifier(feed),
		backend.WithBreaker(breaker),
		backend.WithMetrics(backendMetrics),
		backend.WithTracer(trace),
	}

	authAPI, err := backend.New(backendCfg, shared...)
	if err != nil {
		return fmt.Errorf("build auth client: %w", err)
	}
	gate := session.NewService(backend.NewAuthClient(authAPI), tokens,
		session.WithLogger(log),
		session.WithMetrics(appMetrics),
		session.WithTracer(trace),
	)
	if err := gate.Initialize(ctx); err != nil {
		// The console still starts; the operator simply has to log in again.
		log.WarnContext(ctx, "session restore failed", "error", err)
	}

	api, err := backend.New(backendCfg, append(shared, backend.WithTokenSource(gate))...)
	if err != nil {
		return fmt.Errorf("build catalog client: %w", err)
	}
	schemas, err := catalog.DefaultSchemas()
	if err != nil {
		return fmt.Errorf("load response schemas: %w", err)
	}
	cat := catalog.NewClient(api, schemas)

	registry, err := console.NewRegistry(cat, cfg.PageSize,
		console.WithLogger(log),
		console.WithMetrics(appMetrics),
		console.WithTracer(trace),
	)
	if err != nil {
		return fmt.Errorf("build view registry: %w", err)
	}

	healthHandler.RegisterCheck("shop_backend", func(context.Context) error {
		if breaker.IsOpen() {
			return errors.New("circuit open")
		}
		return nil
	})

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxyList())
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Gatherer:       reg,
		RequestMetrics: request.NewMetrics(reg),
		Metadata:       metadata.NewMiddleware(proxies),
		Health:         healthHandler,
		Session: sessionhandler.New(gate, log,
			sessionhandler.WithLoginRate(cfg.Session.LoginRatePerMinute, cfg.Session.LoginBurst),
			sessionhandler.WithMetrics(appMetrics),
		),
		Gate: gate,
		Console: console.NewHandler(registry, cat, feed, log,
			console.WithHandlerMetrics(appMetrics),
			console.WithHandlerTracer(trace),
		),
		RequestTimeout: cfg.RequestTimeout,
		MetricsToken:   cfg.MetricsToken,
	})

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// buildTokenStore selects the persisted token store. The returned func releases
// any connection the store holds.
func buildTokenStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, h *health.Handler, log *slog.Logger) (session.TokenStore, func(), error) {
	switch cfg.Session.TokenStore {
	case "memory":
		log.Warn("token store is in-memory; the session will not survive a restart")
		return store.NewInMemoryStore(), func() {}, nil
	case "redis":
		client, err := redisclient.New(ctx, cfg.Redis, reg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		h.RegisterCheck("redis", client.Health)
		statsCtx, cancel := context.WithCancel(ctx)
		go client.RunPoolStats(statsCtx, poolStatsInterval)
		closeFn := func() {
			cancel()
			if err := client.Close(); err != nil {
				log.Warn("close redis", "error", err)
			}
		}
		return store.NewRedisStore(client, store.WithKeyPrefix(cfg.Redis.KeyPrefix)), closeFn, nil
	default:
		fs, err := store.NewFileStore(cfg.Session.TokenFile, cfg.Session.TokenSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("open token file: %w", err)
		}
		return fs, func() {}, nil
	}
}
