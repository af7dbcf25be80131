package engine

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/tap-paypal/internal/bookmark"
	"github.com/donaldgifford/tap-paypal/internal/metrics"
	"github.com/donaldgifford/tap-paypal/internal/paypal"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// Skip reasons reported on the invoices_skipped_total metric.
const (
	skipReasonDetail  = "detail_fetch"
	skipReasonFlatten = "flatten"
)

// Extraction is a single pass over the invoices of a date range. Rows can be
// iterated once; the counters and Bookmark are final once iteration ends.
type Extraction struct {
	rows     iter.Seq2[domain.FlatRow, error]
	tracker  *bookmark.Tracker
	invoices atomic.Int64
	skipped  atomic.Int64
}

// Rows returns the lazy row sequence. Rows of one invoice are contiguous and
// in header, items, refund order; invoices follow search order. A fatal error
// is yielded once and ends the sequence.
func (x *Extraction) Rows() iter.Seq2[domain.FlatRow, error] {
	return x.rows
}

// Bookmark returns the greatest last_update_time among the emitted rows, or
// "" if none was emitted.
func (x *Extraction) Bookmark() string {
	return x.tracker.Value()
}

// Invoices returns how many invoices produced rows.
func (x *Extraction) Invoices() int {
	return int(x.invoices.Load())
}

// Skipped returns how many invoices were dropped after a recoverable error.
func (x *Extraction) Skipped() int {
	return int(x.skipped.Load())
}

// invoiceResult is the outcome of enriching and flattening one search result.
type invoiceResult struct {
	item paypal.SearchResultItem
	rows []domain.FlatRow
	err  error
}

// Extract prepares the row sequence for invoices updated between startDate
// and endDate. Nothing is requested until Rows is iterated.
func (eng *Engine) Extract(ctx context.Context, startDate, endDate string) *Extraction {
	x := &Extraction{tracker: bookmark.NewTracker("")}
	pages := eng.pages.Pages(ctx, startDate, endDate)
	var used atomic.Bool

	x.rows = func(yield func(domain.FlatRow, error) bool) {
		if used.Swap(true) {
			yield(domain.FlatRow{}, paypal.ErrSequenceConsumed)
			return
		}

		for items, err := range pages {
			if err != nil {
				yield(domain.FlatRow{}, err)
				return
			}

			if eng.concurrency <= 1 {
				for _, item := range items {
					if !eng.emit(ctx, x, eng.processInvoice(ctx, item), nil, yield) {
						return
					}
				}
				continue
			}

			results, fatal := eng.processPage(ctx, items)
			for _, res := range results {
				if !eng.emit(ctx, x, res, fatal, yield) {
					return
				}
			}
		}
	}

	return x
}

// emit hands one invoice's rows to yield, or skips the invoice after a
// recoverable error. It returns false when the sequence must end. cause is
// the failure that aborted the page, if any: invoices canceled because of it
// report cause instead of being skipped.
func (eng *Engine) emit(
	ctx context.Context,
	x *Extraction,
	res invoiceResult,
	cause error,
	yield func(domain.FlatRow, error) bool,
) bool {
	if res.err != nil {
		switch {
		case cause != nil && (errors.Is(res.err, context.Canceled) || !paypal.IsRecoverable(res.err)):
			yield(domain.FlatRow{}, cause)
			return false
		case ctx.Err() != nil:
			yield(domain.FlatRow{}, ctx.Err())
			return false
		case paypal.IsRecoverable(res.err):
			eng.skip(x, res)
			return true
		default:
			yield(domain.FlatRow{}, res.err)
			return false
		}
	}

	x.invoices.Add(1)
	for i := range res.rows {
		x.tracker.Observe(res.rows[i].LastUpdateTime)
		if !yield(res.rows[i], nil) {
			return false
		}
	}
	return true
}

func (eng *Engine) skip(x *Extraction, res invoiceResult) {
	x.skipped.Add(1)

	reason := skipReasonDetail
	var flattenErr *paypal.FlattenError
	if errors.As(res.err, &flattenErr) {
		reason = skipReasonFlatten
	}
	metrics.InvoicesSkippedTotal.WithLabelValues(reason).Inc()

	eng.log.Warn("skipping invoice",
		slog.String("invoice_id", res.item.ID),
		slog.String("reason", reason),
		slog.Any("error", res.err),
	)
}

// processInvoice fetches and flattens a single invoice.
func (eng *Engine) processInvoice(ctx context.Context, item paypal.SearchResultItem) invoiceResult {
	ctx, span := eng.tracer.Start(ctx, "invoice", trace.WithAttributes(
		attribute.String("invoice.id", item.ID),
		attribute.String("invoice.status", item.Status),
	))
	defer span.End()

	res := invoiceResult{item: item}

	detail, err := eng.details.FetchDetail(ctx, item)
	if err != nil {
		res.err = err
		span.RecordError(err)
		return res
	}

	rows, err := paypal.Flatten(detail)
	if err != nil {
		var flattenErr *paypal.FlattenError
		if errors.As(err, &flattenErr) && flattenErr.InvoiceID == "" {
			flattenErr.InvoiceID = item.ID
		}
		res.err = err
		span.RecordError(err)
		return res
	}

	span.SetAttributes(attribute.Int("invoice.rows", len(rows)))
	res.rows = rows
	return res
}

// processPage fetches the invoices of one page with bounded concurrency. The
// results keep the page order. The returned error is the first fatal failure,
// which also cancels the fetches still in flight.
func (eng *Engine) processPage(
	ctx context.Context,
	items []paypal.SearchResultItem,
) ([]invoiceResult, error) {
	results := make([]invoiceResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eng.concurrency)

	for i, item := range items {
		g.Go(func() error {
			results[i] = eng.processInvoice(gctx, item)
			if err := results[i].err; err != nil && !paypal.IsRecoverable(err) {
				return err
			}
			return nil
		})
	}

	return results, g.Wait()
}
