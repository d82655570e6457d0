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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	aghttp "github.com/Strob0t/agentgraph/internal/adapter/http"
	agmcp "github.com/Strob0t/agentgraph/internal/adapter/mcp"
	agnats "github.com/Strob0t/agentgraph/internal/adapter/nats"
	"github.com/Strob0t/agentgraph/internal/adapter/natskv"
	agotel "github.com/Strob0t/agentgraph/internal/adapter/otel"
	"github.com/Strob0t/agentgraph/internal/adapter/postgres"
	"github.com/Strob0t/agentgraph/internal/adapter/ristretto"
	"github.com/Strob0t/agentgraph/internal/adapter/tiered"
	"github.com/Strob0t/agentgraph/internal/config"
	"github.com/Strob0t/agentgraph/internal/domain"
	"github.com/Strob0t/agentgraph/internal/logger"
	"github.com/Strob0t/agentgraph/internal/middleware"
	"github.com/Strob0t/agentgraph/internal/port/cache"
	"github.com/Strob0t/agentgraph/internal/resilience"
	"github.com/Strob0t/agentgraph/internal/service"
)

const version = "0.1.0"

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		err = runAdmin(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"cache_enabled", cfg.Cache.Enabled,
		"nats_enabled", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownOTEL, err := agotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := agotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	var queue *agnats.Queue
	if cfg.NATS.URL != "" {
		queue, err = agnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
	}

	defCache, closeCache, err := newDefinitionCache(ctx, cfg.Cache, queue)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer closeCache()

	// --- Services ---

	store := postgres.NewStore(pool)
	graphSvc := service.NewGraphService(store, metrics)
	projectSvc := service.NewProjectService(store, graphSvc, metrics)
	if defCache != nil {
		projectSvc.SetCache(defCache, cfg.Cache.L2TTL)
	}
	if queue != nil {
		projectSvc.SetQueue(queue)
	}
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout,
		resilience.IgnoreErrors(func(err error) bool { return errors.Is(err, domain.ErrNotFound) }))
	contextCacheSvc := service.NewContextCacheService(store, breaker, metrics)

	cancelChanges, err := projectSvc.StartChangeSubscriber(ctx)
	if err != nil {
		return fmt.Errorf("change subscriber: %w", err)
	}
	defer cancelChanges()

	// --- HTTP ---

	handlers := &aghttp.Handlers{
		Projects:     projectSvc,
		Graphs:       graphSvc,
		ContextCache: contextCacheSvc,
		Ping:         pool.Ping,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(agotel.HTTPMiddleware())
	r.Use(aghttp.SecurityHeaders)
	r.Use(aghttp.CORS(cfg.Server.CORSOrigin))
	r.Use(aghttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	aghttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var mcpSrv *agmcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = agmcp.NewServer(agmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "agentgraph",
			Version: version,
			APIKey:  cfg.MCP.APIKey,
		}, agmcp.ServerDeps{Projects: projectSvc, Graphs: graphSvc})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

// newDefinitionCache builds the full-project definition cache: ristretto in
// process, backed by a JetStream KV bucket when NATS is available. It returns
// a nil cache when caching is disabled.
func newDefinitionCache(ctx context.Context, cfg config.Cache, queue *agnats.Queue) (cache.Cache, func(), error) {
	noop := func() {}
	if !cfg.Enabled {
		return nil, noop, nil
	}
	l1, err := ristretto.New(cfg.L1MaxSizeMB << 20)
	if err != nil {
		return nil, noop, fmt.Errorf("l1: %w", err)
	}
	if queue == nil {
		slog.Info("definition cache ready", "layers", "l1")
		return l1, l1.Close, nil
	}
	l2, err := natskv.Open(ctx, queue.JetStream(), cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		l1.Close()
		return nil, noop, fmt.Errorf("l2: %w", err)
	}
	slog.Info("definition cache ready", "layers", "l1+l2", "bucket", cfg.L2Bucket)
	return tiered.New(l1, l2, cfg.L1TTL), l1.Close, nil
}
