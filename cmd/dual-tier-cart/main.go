package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/api/handlers"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/api/middleware"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/cache"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/config"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/health"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/metrics"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/migrations"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/pricing"
	repository "github.com/aaravmahajanofficial/dual-tier-cart/internal/repositories"
	service "github.com/aaravmahajanofficial/dual-tier-cart/internal/services"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/telemetry"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// A local .env may supply overrides; its absence is normal.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, cfg.Env)
	if err != nil {
		slog.Error("❌ Failed to initialise tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Durable store
	var db *sql.DB
	if cfg.Store.Driver == config.DriverPostgres {
		db, err = repository.OpenPostgres(ctx, cfg)
		if err != nil {
			slog.Error("❌ Error accessing the database", slog.String("error", err.Error()))
			os.Exit(1)
		}

		if cfg.Store.AutoMigrate {
			if err := migrations.Up(ctx, db); err != nil {
				// An unreachable database must not stop the service; carts are kept in memory.
				slog.Warn("⚠️ Migrations skipped", slog.String("error", err.Error()))
			}
		}
	}

	gateway, closer, err := repository.NewCartGateway(ctx, cfg, db)
	if err != nil {
		slog.Error("❌ Error creating cart store", slog.String("driver", cfg.Store.Driver), slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := closer.Close(); err != nil {
			slog.Error("⚠️ Error closing cart store", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Cart store connection closed")
		}
	}()

	cartMetrics := metrics.NewCartMetrics(nil)

	cartService := service.NewCartService(service.EngineParams{
		Gateway: gateway,
		Memory:  cache.NewMemoryTier(),
		Charges: pricing.FromConfig(cfg.Pricing),
		Logger:  logger.With(slog.String("component", "cart-engine")),
		Metrics: cartMetrics,
	})

	reconciler := service.NewReconciler(service.ReconcilerParams{
		Engine:         cartService,
		Logger:         logger.With(slog.String("component", "reconciler")),
		Metrics:        cartMetrics,
		Interval:       cfg.Reconciler.Interval,
		InitialBackoff: cfg.Reconciler.InitialBackoff,
		MaxBackoff:     cfg.Reconciler.MaxBackoff,
	})

	healthHandler, err := health.NewHealthHandler(cartService, health.Options{
		ServiceName:  cfg.Tracing.ServiceName,
		MaxDirty:     cfg.Reconciler.MaxDirty,
		StoreTimeout: cfg.Store.Timeout,
	})
	if err != nil {
		slog.Error("❌ Error creating health checks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cartHandler := handlers.NewCartHandler(cartService)
	authMiddleware := middleware.NewAuthMiddleware([]byte(cfg.Security.JWTKey))

	slog.Info("cart core initialized", slog.String("env", cfg.Env), slog.String("store", cfg.Store.Driver))

	// Setup router
	routerMux := http.NewServeMux()
	cartHandler.RegisterRoutes(routerMux, authMiddleware)
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = middleware.Logging(handler)
	handler = metrics.Middleware(handler)
	handler = otelhttp.NewHandler(handler, "http.server")

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return reconciler.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()

		slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
		}

		// Last chance to persist carts that only live in memory.
		if err := reconciler.Flush(shutdownCtx); err != nil {
			slog.Error("⚠️ Carts left unsaved at shutdown",
				slog.Int("dirty", cartService.DirtyCount()),
				slog.String("error", err.Error()))
		}

		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("⚠️ Tracing shutdown failed", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("❌ Server stopped with error", slog.String("error", err.Error()))
		stop()
		return
	}

	slog.Info("✅ Server shut down gracefully. All connections closed.")
}
