package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/donaldgifford/tap-paypal/internal/config"
	"github.com/donaldgifford/tap-paypal/internal/engine"
	"github.com/donaldgifford/tap-paypal/internal/paypal"
	"github.com/donaldgifford/tap-paypal/internal/sink"
	"github.com/donaldgifford/tap-paypal/internal/store"
)

// app holds the components built from one configuration.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *store.PostgresStore // nil unless postgres is configured
	state  store.StateStore
	engine *engine.Engine
}

// newApp wires the PayPal client, state store, sinks and engine. Singer
// messages go to singerOut when it is non-nil and Singer output is enabled.
func newApp(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	singerOut io.Writer,
) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if cfg.UsesPostgres() {
		db, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.db = db
	}

	if cfg.State.Backend == config.StateBackendPostgres {
		a.state = a.db
	} else {
		a.state = store.NewFileStateStore(cfg.State.Path)
	}

	client := newPayPalClient(cfg, log)
	pages := paypal.NewPaginator(client, paypal.WithPaginatorLogger(log))

	opts := []engine.EngineOption{
		engine.WithLogger(log),
		engine.WithDetailConcurrency(cfg.PayPal.DetailConcurrency),
		engine.WithDateRange(cfg.PayPal.StartDate, cfg.PayPal.EndDate),
	}
	if a.db != nil {
		opts = append(opts,
			engine.WithRunStore(a.db),
			engine.WithLocker(a.db, "", 0),
		)
	}

	a.engine = engine.NewEngine(pages, client, a.state, a.buildSink(singerOut), opts...)
	return a, nil
}

func newPayPalClient(cfg *config.Config, log *slog.Logger) *paypal.Client {
	pp := cfg.PayPal
	httpClient := paypal.NewHTTPClient(pp.Timeout, pp.UserAgent)

	tokens := paypal.NewOAuthTokenProvider(
		pp.ClientID, pp.ClientSecret, pp.BaseURL,
		paypal.WithHTTPClient(httpClient),
		paypal.WithTokenLogger(log),
	)

	return paypal.NewClient(tokens,
		paypal.WithBaseURL(pp.BaseURL),
		paypal.WithClientHTTPClient(httpClient),
		paypal.WithRateLimiter(paypal.NewRateLimiter(pp.RateLimit.PerSecond, pp.RateLimit.Burst)),
	)
}

func (a *app) buildSink(singerOut io.Writer) sink.Sink {
	var sinks sink.Multi
	if a.cfg.Output.Singer && singerOut != nil {
		sinks = append(sinks, sink.NewSingerWriter(singerOut))
	}
	if a.cfg.Output.Postgres {
		sinks = append(sinks, sink.NewPostgresSink(a.db,
			sink.WithBatchSize(a.cfg.Output.BatchSize),
			sink.WithPostgresLogger(a.log),
		))
	}

	switch len(sinks) {
	case 0:
		a.log.Warn("no row output configured, rows are discarded")
		return sink.Discard{}
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

// Close releases the database pool, if any.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
