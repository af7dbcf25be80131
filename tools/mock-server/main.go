// Package main implements a mock PayPal Invoicing API server for local
// development. It serves invoices from a JSON fixture through the OAuth token,
// search-invoices and invoice detail endpoints, so tap-paypal can run end to
// end without PayPal credentials.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const defaultPageSize = 20

// invoice keeps the raw fixture document alongside the fields the mock
// filters and sorts on.
type invoice struct {
	raw            json.RawMessage
	id             string
	status         string
	invoiceDate    string
	lastUpdateTime string
}

type fixtureInvoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail struct {
		InvoiceDate string `json:"invoice_date"`
		Metadata    struct {
			LastUpdateTime string `json:"last_update_time"`
		} `json:"metadata"`
	} `json:"detail"`
}

type searchRequest struct {
	InvoiceDateRange struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"invoice_date_range"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type searchItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

type searchResponse struct {
	Items      []searchItem `json:"items"`
	TotalItems int          `json:"total_items"`
	TotalPages int          `json:"total_pages"`
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/invoices.json", "path to invoices fixture")
	failIDs := flag.String("fail-detail", "", "comma-separated invoice IDs whose detail request returns 500")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	invoices, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "invoices", len(invoices))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock PayPal server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, newMux(logger, invoices, splitIDs(*failIDs))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newMux(logger *slog.Logger, invoices []invoice, failing map[string]bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", tokenHandler(logger))
	mux.HandleFunc("POST /v2/invoicing/search-invoices", searchHandler(logger, invoices))
	mux.HandleFunc("GET /v2/invoicing/invoices/{id}", detailHandler(logger, invoices, failing))
	return mux
}

// loadFixture reads the invoices and orders them by last update time, the
// order the real search endpoint uses with order_by=last_update_time.
func loadFixture(path string) ([]invoice, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	invoices := make([]invoice, 0, len(raws))
	for i, raw := range raws {
		var f fixtureInvoice
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parsing fixture invoice %d: %w", i, err)
		}
		invoices = append(invoices, invoice{
			raw:            raw,
			id:             f.ID,
			status:         f.Status,
			invoiceDate:    f.Detail.InvoiceDate,
			lastUpdateTime: f.Detail.Metadata.LastUpdateTime,
		})
	}

	slices.SortStableFunc(invoices, func(a, b invoice) int {
		return strings.Compare(a.lastUpdateTime, b.lastUpdateTime)
	})
	return invoices, nil
}

func splitIDs(s string) map[string]bool {
	ids := map[string]bool{}
	for id := range strings.SplitSeq(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = true
		}
	}
	return ids
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
	json.NewEncoder(w).Encode(v)
}

func tokenHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Basic Auth must be present; the credentials are not checked.
		if _, _, ok := r.BasicAuth(); !ok {
			logger.Warn("token request missing Basic Auth header")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_client",
				"error_description": "Client Authentication failed",
			})
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "unsupported_grant_type",
				"error_description": "Grant Type is NULL",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"scope":        "https://uri.paypal.com/services/invoicing",
			"access_token": "mock-token-" + strconv.FormatInt(int64(os.Getpid()), 16),
			"token_type":   "Bearer",
			"app_id":       "APP-MOCK",
			"expires_in":   32400,
		})
		logger.Info("issued mock token")
	}
}

func authorized(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer mock-token-")
}

func searchHandler(logger *slog.Logger, invoices []invoice) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"name": "AUTHENTICATION_FAILURE"})
			return
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"name":    "INVALID_REQUEST",
				"message": err.Error(),
			})
			return
		}

		page := queryInt(r, "page", 1)
		size := queryInt(r, "page_size", defaultPageSize)

		var matched []searchItem
		for _, inv := range invoices {
			if !inDateRange(inv.invoiceDate, req.InvoiceDateRange.Start, req.InvoiceDateRange.End) {
				continue
			}
			matched = append(matched, searchItem{
				ID:     inv.id,
				Status: inv.status,
				Links: []link{{
					Href:   "http://" + r.Host + "/v2/invoicing/invoices/" + inv.id,
					Rel:    "self",
					Method: "GET",
				}},
			})
		}

		total := len(matched)
		start := min((page-1)*size, total)
		end := min(start+size, total)

		resp := searchResponse{
			TotalItems: total,
			TotalPages: (total + size - 1) / size,
		}
		// An empty page omits the items key, as the real endpoint does.
		if start < end {
			resp.Items = matched[start:end]
		}

		writeJSON(w, http.StatusOK, resp)
		logger.Info("search",
			"start", req.InvoiceDateRange.Start,
			"end", req.InvoiceDateRange.End,
			"matched", total,
			"returned", end-start,
			"page", page,
			"page_size", size,
		)
	}
}

func detailHandler(logger *slog.Logger, invoices []invoice, failing map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"name": "AUTHENTICATION_FAILURE"})
			return
		}

		id := r.PathValue("id")
		if failing[id] {
			logger.Warn("failing detail request on purpose", "id", id)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"name": "INTERNAL_SERVER_ERROR"})
			return
		}

		for _, inv := range invoices {
			if inv.id == id {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(inv.raw)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"name": "RESOURCE_NOT_FOUND"})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

// inDateRange compares YYYY-MM-DD dates; empty bounds are open.
func inDateRange(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && date > end {
		return false
	}
	return true
}
