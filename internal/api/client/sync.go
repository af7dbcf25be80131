package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/donaldgifford/tap-paypal/internal/engine"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// Sync triggers one sync on the service and waits for its summary.
func (c *Client) Sync(ctx context.Context) (*engine.SyncResult, error) {
	var res engine.SyncResult
	if err := c.post(ctx, "/api/v1/sync", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetState returns the persisted bookmark of the invoices stream.
func (c *Client) GetState(ctx context.Context) (*domain.Bookmark, error) {
	var b domain.Bookmark
	if err := c.get(ctx, "/api/v1/state", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListRuns returns up to limit recent sync runs. A zero limit uses the
// server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Runs []domain.SyncRun `json:"runs"`
	}
	if err := c.get(ctx, "/api/v1/runs", q, &body); err != nil {
		return nil, err
	}
	return body.Runs, nil
}

// RowFilter narrows a ListRows query. Zero fields are not sent.
type RowFilter struct {
	InvoiceID    string
	Status       string
	Kind         string
	UpdatedSince time.Time
	Limit        int
	Offset       int
}

// RowPage is one page of stored invoice rows.
type RowPage struct {
	Rows   []domain.FlatRow `json:"rows"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ListRows queries rows stored by the service's postgres sink.
func (c *Client) ListRows(ctx context.Context, f RowFilter) (*RowPage, error) {
	q := url.Values{}
	if f.InvoiceID != "" {
		q.Set("invoice_id", f.InvoiceID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Kind != "" {
		q.Set("kind", f.Kind)
	}
	if !f.UpdatedSince.IsZero() {
		q.Set("updated_since", f.UpdatedSince.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var page RowPage
	if err := c.get(ctx, "/api/v1/rows", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
