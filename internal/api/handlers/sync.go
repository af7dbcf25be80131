package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/tap-paypal/internal/engine"
)

// SyncHandler handles manual sync trigger requests.
type SyncHandler struct {
	syncer engine.Syncer
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(s engine.Syncer) *SyncHandler {
	return &SyncHandler{syncer: s}
}

// SyncOutput is the response body for the sync endpoint.
type SyncOutput struct {
	Body *engine.SyncResult
}

// Sync runs one incremental sync inside the request.
func (h *SyncHandler) Sync(ctx context.Context, _ *struct{}) (*SyncOutput, error) {
	res, err := h.syncer.RunSync(ctx)
	switch {
	case errors.Is(err, engine.ErrSyncInProgress):
		return nil, huma.Error409Conflict("a sync is already running")
	case err != nil:
		return nil, huma.Error500InternalServerError("sync failed: " + err.Error())
	}
	return &SyncOutput{Body: res}, nil
}

// RegisterSyncRoutes registers the sync trigger with the Huma API.
func RegisterSyncRoutes(api huma.API, h *SyncHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-sync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Trigger a sync",
		Description: "Runs one incremental invoice sync and returns its summary. " +
			"Returns 409 while another sync is running.",
		Tags:   []string{"sync"},
		Errors: []int{http.StatusConflict, http.StatusInternalServerError},
	}, h.Sync)
}
