package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// RunLister lists recent sync runs.
type RunLister interface {
	ListSyncRuns(ctx context.Context, limit int) ([]domain.SyncRun, error)
}

// RunsHandler handles sync run history.
type RunsHandler struct {
	runs RunLister
}

// NewRunsHandler creates a RunsHandler.
func NewRunsHandler(r RunLister) *RunsHandler {
	return &RunsHandler{runs: r}
}

// ListRunsInput is the input for listing sync runs.
type ListRunsInput struct {
	Limit int `query:"limit" doc:"Number of runs (default 20)" minimum:"1" maximum:"500"`
}

// ListRunsOutput is the response for listing sync runs.
type ListRunsOutput struct {
	Body struct {
		Runs []domain.SyncRun `json:"runs"`
	}
}

// ListRuns returns the most recent sync runs, newest first.
func (h *RunsHandler) ListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 20
	}

	runs, err := h.runs.ListSyncRuns(ctx, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list sync runs")
	}

	resp := &ListRunsOutput{}
	resp.Body.Runs = runs
	if resp.Body.Runs == nil {
		resp.Body.Runs = []domain.SyncRun{}
	}
	return resp, nil
}

// RegisterRunRoutes registers the run history route on the Huma API.
func RegisterRunRoutes(api huma.API, h *RunsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List sync runs",
		Description: "Returns recent sync runs with their outcome, window and row counts.",
		Tags:        []string{"sync"},
	}, h.ListRuns)
}
