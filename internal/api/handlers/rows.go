package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// RowsHandler serves flattened invoice rows from the database sink.
type RowsHandler struct {
	rows store.RowReader
}

// NewRowsHandler creates a RowsHandler.
func NewRowsHandler(r store.RowReader) *RowsHandler {
	return &RowsHandler{rows: r}
}

// ListRowsInput is the input for listing invoice rows with optional filters.
type ListRowsInput struct {
	InvoiceID    string    `query:"invoice_id"    doc:"Filter by invoice ID"`
	Status       string    `query:"status"        doc:"Filter by invoice status"`
	Kind         string    `query:"kind"          doc:"Filter by row kind"                     enum:"header,item,refund,"`
	UpdatedSince time.Time `query:"updated_since" doc:"Only rows updated at or after this time"`
	Limit        int       `query:"limit"         doc:"Number of results (default 100)"       minimum:"1" maximum:"1000"`
	Offset       int       `query:"offset"        doc:"Pagination offset"                     minimum:"0"`
}

// ListRowsOutput is the response for listing invoice rows.
type ListRowsOutput struct {
	Body struct {
		Rows   []domain.FlatRow `json:"rows"`
		Total  int              `json:"total"`
		Limit  int              `json:"limit"`
		Offset int              `json:"offset"`
	}
}

// ListRows returns stored invoice rows ordered by last update.
func (h *RowsHandler) ListRows(ctx context.Context, input *ListRowsInput) (*ListRowsOutput, error) {
	q := &store.RowQuery{
		Limit:  input.Limit,
		Offset: input.Offset,
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	if input.InvoiceID != "" {
		q.InvoiceID = &input.InvoiceID
	}
	if input.Status != "" {
		q.Status = &input.Status
	}
	if input.Kind != "" {
		q.Kind = &input.Kind
	}
	if !input.UpdatedSince.IsZero() {
		q.UpdatedSince = &input.UpdatedSince
	}

	rows, total, err := h.rows.ListInvoiceRows(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("row query failed: " + err.Error())
	}

	resp := &ListRowsOutput{}
	resp.Body.Rows = rows
	if resp.Body.Rows == nil {
		resp.Body.Rows = []domain.FlatRow{}
	}
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset
	return resp, nil
}

// RegisterRowRoutes registers the row query route on the Huma API.
func RegisterRowRoutes(api huma.API, h *RowsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rows",
		Method:      http.MethodGet,
		Path:        "/api/v1/rows",
		Summary:     "List invoice rows",
		Description: "Returns flattened invoice rows written by the postgres sink.",
		Tags:        []string{"rows"},
	}, h.ListRows)
}
