package cmd

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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/donaldgifford/tap-paypal/internal/api/handlers"
	"github.com/donaldgifford/tap-paypal/internal/api/middleware"
	"github.com/donaldgifford/tap-paypal/internal/engine"
	"github.com/donaldgifford/tap-paypal/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	// Runs still marked running after this long were left by a crashed process.
	staleRunAge = 2 * time.Hour
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and sync scheduler",
		Long: "Run tap-paypal as a long-lived service. Syncs run every\n" +
			"schedule.sync_interval and on demand via POST /api/v1/sync. Rows go\n" +
			"to the postgres sink; Singer output is disabled in this mode.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, &cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newEcho(a, log)

	sched, err := startScheduler(a, log)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(e, "tap-paypal"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if sched != nil {
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("scheduled sync still running at shutdown")
		}
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newEcho(a *app, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	var health *handlers.HealthHandler
	if a.db != nil {
		health = handlers.NewHealthHandler(a.db)
	} else {
		health = handlers.NewHealthHandler(nil)
	}
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("tap-paypal", Version))
	handlers.RegisterSyncRoutes(api, handlers.NewSyncHandler(a.engine))
	handlers.RegisterStateRoutes(api, handlers.NewStateHandler(a.state))
	if a.db != nil {
		handlers.RegisterRunRoutes(api, handlers.NewRunsHandler(a.db))
		handlers.RegisterRowRoutes(api, handlers.NewRowsHandler(a.db))
	}

	return e
}

// startScheduler starts periodic syncs, or returns nil when
// schedule.sync_interval is zero.
func startScheduler(a *app, log *slog.Logger) (*engine.Scheduler, error) {
	interval := a.cfg.Schedule.SyncInterval
	if interval == 0 {
		log.Info("scheduled syncs disabled")
		return nil, nil
	}

	var opts []engine.SchedulerOption
	if a.db != nil {
		opts = append(opts, engine.WithStaleRunRecovery(a.db, staleRunAge))
	}

	sched, err := engine.NewScheduler(a.engine, interval, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()

	log.Info("scheduler started", "interval", interval, "next_run", sched.NextRun())
	return sched, nil
}
