package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

const defaultBatchSize = 500

// PostgresSink buffers rows and upserts them in batches by
// (invoice_id, item_name), so re-scanned bookmark days are idempotent.
type PostgresSink struct {
	rows      store.RowStore
	log       *slog.Logger
	batchSize int
	pending   []domain.FlatRow
	written   int
}

// PostgresOption configures the PostgresSink.
type PostgresOption func(*PostgresSink)

// WithBatchSize sets how many rows are buffered per upsert.
func WithBatchSize(n int) PostgresOption {
	return func(p *PostgresSink) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithPostgresLogger sets the logger.
func WithPostgresLogger(l *slog.Logger) PostgresOption {
	return func(p *PostgresSink) {
		p.log = l
	}
}

// NewPostgresSink creates a sink writing to rows.
func NewPostgresSink(rows store.RowStore, opts ...PostgresOption) *PostgresSink {
	p := &PostgresSink{
		rows:      rows,
		log:       slog.New(slog.DiscardHandler),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pending = make([]domain.FlatRow, 0, p.batchSize)
	return p
}

// WriteRow implements Sink.
func (p *PostgresSink) WriteRow(ctx context.Context, row *domain.FlatRow) error {
	p.pending = append(p.pending, *row)
	if len(p.pending) < p.batchSize {
		return nil
	}
	return p.Flush(ctx)
}

// WriteState implements Sink. State is persisted through the StateStore, so
// there is nothing to do here.
func (p *PostgresSink) WriteState(context.Context, store.State) error {
	return nil
}

// Flush implements Sink.
func (p *PostgresSink) Flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	// A failed batch is dropped. The bookmark does not advance past a failed
	// run, so the next run re-fetches and upserts these rows again.
	if err := p.rows.UpsertInvoiceRows(ctx, p.pending); err != nil {
		p.log.Warn("dropping rows after failed upsert", "batch", len(p.pending), "error", err)
		p.pending = p.pending[:0]
		return fmt.Errorf("writing rows to postgres: %w", err)
	}

	p.written += len(p.pending)
	p.log.Debug("rows upserted", "batch", len(p.pending), "total", p.written)
	p.pending = p.pending[:0]
	return nil
}

// Written returns the number of rows upserted so far.
func (p *PostgresSink) Written() int {
	return p.written
}
