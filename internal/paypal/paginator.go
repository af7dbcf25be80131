package paypal

import (
	"context"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/donaldgifford/tap-paypal/internal/metrics"
)

// PageSize is the fixed search page size. A page shorter than this is the
// last one.
const PageSize = 100

const statusDraft = "DRAFT"

// Paginator walks the search-invoices pages for a date range.
type Paginator struct {
	client   Searcher
	log      *slog.Logger
	pageSize int
}

// PaginatorOption configures the Paginator.
type PaginatorOption func(*Paginator)

// WithPaginatorLogger sets the logger.
func WithPaginatorLogger(l *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		p.log = l
	}
}

// NewPaginator creates a new Paginator.
func NewPaginator(client Searcher, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		client:   client,
		log:      slog.New(slog.DiscardHandler),
		pageSize: PageSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pages returns a lazy sequence of non-draft search results, one slice per
// page. Pagination stops after a page without an items key or with fewer than
// PageSize items; no further request is issued. Pages whose items are all
// drafts are not yielded but do not stop pagination. A request error is
// yielded once and ends the sequence. The sequence can be iterated only once.
func (p *Paginator) Pages(
	ctx context.Context,
	startDate, endDate string,
) iter.Seq2[[]SearchResultItem, error] {
	var used atomic.Bool

	return func(yield func([]SearchResultItem, error) bool) {
		if used.Swap(true) {
			yield(nil, ErrSequenceConsumed)
			return
		}

		page := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			resp, err := p.client.Search(ctx, SearchRequest{
				StartDate: startDate,
				EndDate:   endDate,
				Page:      page,
				PageSize:  p.pageSize,
			})
			if err != nil {
				yield(nil, err)
				return
			}

			metrics.PagesFetchedTotal.Inc()

			items := withoutDrafts(resp.Items)
			p.log.Debug("search page fetched",
				"page", max(page, 1),
				"items", len(resp.Items),
				"drafts", len(resp.Items)-len(items),
			)

			if len(items) > 0 && !yield(items, nil) {
				return
			}

			if !resp.HasItems || len(resp.Items) < p.pageSize {
				return
			}

			page = nextPage(page)
		}
	}
}

// Items flattens Pages into a lazy sequence of single search results.
func (p *Paginator) Items(
	ctx context.Context,
	startDate, endDate string,
) iter.Seq2[SearchResultItem, error] {
	pages := p.Pages(ctx, startDate, endDate)

	return func(yield func(SearchResultItem, error) bool) {
		for items, err := range pages {
			if err != nil {
				yield(SearchResultItem{}, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// nextPage advances the page cursor. The first request carries no page
// number and counts as page 1.
func nextPage(previous int) int {
	if previous == 0 {
		previous = 1
	}
	return previous + 1
}

func withoutDrafts(items []SearchResultItem) []SearchResultItem {
	out := make([]SearchResultItem, 0, len(items))
	for _, item := range items {
		if item.Status == statusDraft {
			metrics.DraftsFilteredTotal.Inc()
			continue
		}
		out = append(out, item)
	}
	return out
}
