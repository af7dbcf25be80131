package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/tap-paypal/internal/telemetry"
)

// runSync performs one Singer sync: records and the final state message go to
// stdout, logs to stderr. Any fatal error exits non-zero.
func runSync(cmd *cobra.Command) error {
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

	a, err := newApp(ctx, cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.engine.RunSync(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}
