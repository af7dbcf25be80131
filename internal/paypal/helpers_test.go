package paypal_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/donaldgifford/tap-paypal/internal/paypal"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

// searchItemJSON renders one search-invoices result with a self link to
// baseURL.
func searchItemJSON(baseURL, id, status string) map[string]any {
	return map[string]any{
		"id":     id,
		"status": status,
		"links": []map[string]string{
			{
				"href":   baseURL + "/v2/invoicing/invoices/" + id,
				"rel":    "self",
				"method": "GET",
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// invoiceJSON renders a minimal valid invoice document.
func invoiceJSON(id, lastUpdate string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"status": "PAID",
		"detail": {
			"invoice_number": "0001",
			"invoice_date": "2024-03-01",
			"currency_code": "USD",
			"metadata": {"last_update_time": %q}
		},
		"amount": {"currency_code": "USD", "value": "10.00"}
	}`, id, lastUpdate)
}

func newClient(baseURL string) *paypal.Client {
	return paypal.NewClient(
		staticTokens{token: "test-token"},
		paypal.WithBaseURL(strings.TrimRight(baseURL, "/")),
	)
}
