package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// StateHandler exposes the persisted replication bookmark.
type StateHandler struct {
	state store.StateStore
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(s store.StateStore) *StateHandler {
	return &StateHandler{state: s}
}

// StateOutput is the response for GET /api/v1/state.
type StateOutput struct {
	Body *domain.Bookmark
}

// GetState returns the invoices stream bookmark.
func (h *StateHandler) GetState(ctx context.Context, _ *struct{}) (*StateOutput, error) {
	b, err := h.state.GetBookmark(ctx, domain.StreamInvoices)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load bookmark")
	}
	if b == nil {
		return nil, huma.Error404NotFound("no bookmark yet")
	}
	return &StateOutput{Body: b}, nil
}

// RegisterStateRoutes registers the state route on the Huma API.
func RegisterStateRoutes(api huma.API, h *StateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/v1/state",
		Summary:     "Get replication state",
		Description: "Returns the persisted last_update_time bookmark of the invoices stream.",
		Tags:        []string{"sync"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetState)
}
