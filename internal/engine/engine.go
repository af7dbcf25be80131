// Package engine runs invoice syncs: it walks the search pages, enriches
// every invoice with its detail document, flattens it into rows, hands the
// rows to the sinks, and persists the new bookmark once the run completes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/donaldgifford/tap-paypal/internal/bookmark"
	"github.com/donaldgifford/tap-paypal/internal/metrics"
	"github.com/donaldgifford/tap-paypal/internal/paypal"
	"github.com/donaldgifford/tap-paypal/internal/sink"
	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

const tracerName = "github.com/donaldgifford/tap-paypal/internal/engine"

// ErrSyncInProgress is returned by RunSync while another sync holds the
// engine or the shared sync lock.
var ErrSyncInProgress = errors.New("sync already in progress")

// PageSource yields the non-draft search results of a date range, page by page.
type PageSource interface {
	Pages(ctx context.Context, startDate, endDate string) iter.Seq2[[]paypal.SearchResultItem, error]
}

// Engine orchestrates invoice syncs.
type Engine struct {
	pages   PageSource
	details paypal.DetailFetcher
	state   store.StateStore
	sink    sink.Sink
	runs    store.RunStore
	locker  store.Locker
	log     *slog.Logger
	tracer  trace.Tracer

	concurrency int
	startDate   string
	endDate     string
	lockHolder  string
	lockTTL     time.Duration
	nowFunc     func() time.Time

	mu sync.Mutex
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	pages PageSource,
	details paypal.DetailFetcher,
	state store.StateStore,
	out sink.Sink,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		pages:       pages,
		details:     details,
		state:       state,
		sink:        out,
		log:         slog.Default(),
		tracer:      otel.Tracer(tracerName),
		concurrency: 1,
		lockHolder:  uuid.NewString(),
		lockTTL:     time.Hour,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithDetailConcurrency sets how many detail documents of one page are
// fetched at once. Rows are still emitted in search order.
func WithDetailConcurrency(n int) EngineOption {
	return func(e *Engine) {
		e.concurrency = max(n, 1)
	}
}

// WithDateRange sets the configured start and end dates. Either may be empty.
func WithDateRange(startDate, endDate string) EngineOption {
	return func(e *Engine) {
		e.startDate = startDate
		e.endDate = endDate
	}
}

// WithRunStore records every sync run.
func WithRunStore(r store.RunStore) EngineOption {
	return func(e *Engine) {
		e.runs = r
	}
}

// WithLocker makes RunSync take a shared lease so replicas never sync
// concurrently. ttl bounds how long a crashed holder blocks the others.
func WithLocker(l store.Locker, holder string, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.locker = l
		if holder != "" {
			e.lockHolder = holder
		}
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithNowFunc overrides the clock used for default dates.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// SyncResult summarizes a completed sync run.
type SyncResult struct {
	RunID     string        `json:"run_id"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Rows      int           `json:"rows"`
	Invoices  int           `json:"invoices"`
	Skipped   int           `json:"skipped"`
	Bookmark  string        `json:"bookmark,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunSync performs one incremental sync: it computes the search window from
// the persisted bookmark, streams every row to the sink, then saves the new
// bookmark and emits it as state. A run that fails keeps the old bookmark.
func (eng *Engine) RunSync(ctx context.Context) (*SyncResult, error) {
	if !eng.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer eng.mu.Unlock()

	if eng.locker != nil {
		ok, err := eng.locker.AcquireSyncLock(ctx, eng.lockHolder, eng.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrSyncInProgress
		}
		defer func() {
			// The request context may already be canceled.
			if err := eng.locker.ReleaseSyncLock(context.WithoutCancel(ctx), eng.lockHolder); err != nil {
				eng.log.Warn("releasing sync lock", "error", err)
			}
		}()
	}

	started := time.Now()
	res := &SyncResult{RunID: uuid.NewString()}
	log := eng.log.With("run_id", res.RunID)

	ctx, span := eng.tracer.Start(ctx, "sync", trace.WithAttributes(
		attribute.String("sync.run_id", res.RunID),
	))
	defer span.End()

	err := eng.runSync(ctx, log, res)
	res.Duration = time.Since(started)

	metrics.SyncDuration.Observe(res.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("sync.rows", res.Rows),
		attribute.Int("sync.invoices", res.Invoices),
		attribute.Int("sync.skipped", res.Skipped),
	)

	status := domain.RunStatusSucceeded
	if err != nil {
		status = domain.RunStatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("sync failed", "error", err, "rows", res.Rows, "skipped", res.Skipped)
	} else {
		log.Info("sync complete",
			"start_date", res.StartDate,
			"end_date", res.EndDate,
			"invoices", res.Invoices,
			"rows", res.Rows,
			"skipped", res.Skipped,
			"bookmark", res.Bookmark,
			"duration", res.Duration,
		)
	}
	metrics.SyncRunsTotal.WithLabelValues(status).Inc()
	eng.completeRun(ctx, log, res, status, err)

	if err != nil {
		return res, err
	}
	return res, nil
}

func (eng *Engine) runSync(ctx context.Context, log *slog.Logger, res *SyncResult) error {
	persisted, err := eng.state.GetBookmark(ctx, domain.StreamInvoices)
	if err != nil {
		return fmt.Errorf("loading bookmark: %w", err)
	}
	var persistedValue string
	if persisted != nil {
		persistedValue = persisted.Value
	}

	now := eng.nowFunc()
	res.StartDate, err = bookmark.StartDate(persistedValue, eng.startDate, now)
	if err != nil {
		return err
	}
	res.EndDate, err = bookmark.EndDate(eng.endDate, now)
	if err != nil {
		return err
	}

	eng.insertRun(ctx, log, res)
	log.Info("sync starting",
		"start_date", res.StartDate,
		"end_date", res.EndDate,
		"bookmark", persistedValue,
	)

	x := eng.Extract(ctx, res.StartDate, res.EndDate)
	for row, err := range x.Rows() {
		if err != nil {
			res.Invoices, res.Skipped = x.Invoices(), x.Skipped()
			eng.flushAfterFailure(ctx, log)
			return err
		}
		if err := eng.sink.WriteRow(ctx, &row); err != nil {
			res.Invoices, res.Skipped = x.Invoices(), x.Skipped()
			return fmt.Errorf("writing row: %w", err)
		}
		res.Rows++
		metrics.RowsEmittedTotal.WithLabelValues(string(row.Kind)).Inc()
	}
	res.Invoices, res.Skipped = x.Invoices(), x.Skipped()

	if err := eng.sink.Flush(ctx); err != nil {
		return fmt.Errorf("flushing rows: %w", err)
	}

	// Seeded with the persisted value: the bookmark never moves backwards.
	tracker := bookmark.NewTracker(persistedValue)
	tracker.Observe(x.Bookmark())
	res.Bookmark = tracker.Value()
	if res.Bookmark == "" {
		return nil
	}

	if err := eng.state.SaveBookmark(ctx, domain.StreamInvoices, domain.ReplicationKey, res.Bookmark); err != nil {
		return fmt.Errorf("saving bookmark: %w", err)
	}
	if err := eng.sink.WriteState(ctx, store.NewState(
		domain.StreamInvoices, domain.ReplicationKey, res.Bookmark,
	)); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	metrics.BookmarkTimestamp.Set(float64(tracker.Time().Unix()))

	return nil
}

// flushAfterFailure delivers rows already handed to the sinks. Emission is
// at-least-once, so a partial run still lands what it produced.
func (eng *Engine) flushAfterFailure(ctx context.Context, log *slog.Logger) {
	if err := eng.sink.Flush(context.WithoutCancel(ctx)); err != nil {
		log.Warn("flushing rows after failure", "error", err)
	}
}

func (eng *Engine) insertRun(ctx context.Context, log *slog.Logger, res *SyncResult) {
	if eng.runs == nil {
		return
	}
	run := &domain.SyncRun{
		ID:        res.RunID,
		StartedAt: eng.nowFunc().UTC(),
		Status:    domain.RunStatusRunning,
		StartDate: res.StartDate,
		EndDate:   res.EndDate,
	}
	if err := eng.runs.InsertSyncRun(ctx, run); err != nil {
		log.Warn("recording sync run", "error", err)
	}
}

func (eng *Engine) completeRun(
	ctx context.Context,
	log *slog.Logger,
	res *SyncResult,
	status string,
	runErr error,
) {
	if eng.runs == nil || res.StartDate == "" {
		return
	}
	run := &domain.SyncRun{
		ID:           res.RunID,
		Status:       status,
		RowsEmitted:  res.Rows,
		Skipped:      res.Skipped,
		BookmarkTime: res.Bookmark,
	}
	if runErr != nil {
		run.ErrorText = runErr.Error()
	}
	if err := eng.runs.CompleteSyncRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("completing sync run record", "error", err)
	}
}
