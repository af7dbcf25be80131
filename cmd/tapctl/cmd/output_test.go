package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "short", max: 10, want: "short"},
		{in: "exactly10!", max: 10, want: "exactly10!"},
		{in: "this is too long", max: 10, want: "this is..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max))
	}
}

func TestPrintRunsTable(t *testing.T) {
	t.Parallel()

	done := time.Date(2024, 3, 10, 12, 5, 0, 0, time.UTC)
	runs := []domain.SyncRun{
		{
			ID:          "run-1",
			Status:      domain.RunStatusSucceeded,
			StartedAt:   time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
			CompletedAt: &done,
			StartDate:   "2024-03-05",
			EndDate:     "2024-03-10",
			RowsEmitted: 12,
		},
		{
			ID:        "run-2",
			Status:    domain.RunStatusRunning,
			StartedAt: time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printRunsTable(&buf, runs))

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2024-03-10 12:05:00")
	assert.Contains(t, out, "2024-03-05..2024-03-10")
	assert.Contains(t, out, "run-2")
}

func TestPrintRowsTable(t *testing.T) {
	t.Parallel()

	rows := []domain.FlatRow{
		{InvoiceID: "INV-1", Status: "PAID", TotalInvoice: 30, CurrencyCode: "USD"},
		{InvoiceID: "INV-1", Status: "PAID", ItemName: "Widget", ItemQty: 3, ItemUnitPrice: 10, ItemTotal: 30},
	}

	var buf bytes.Buffer
	require.NoError(t, printRowsTable(&buf, rows))

	out := buf.String()
	assert.Contains(t, out, "INVOICE")
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "30.00")
}

func TestOutputJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, outputJSON(&buf, domain.Bookmark{
		Stream:         domain.StreamInvoices,
		ReplicationKey: "last_update_time",
		Value:          "2024-03-05T10:00:00Z",
	}))
	assert.JSONEq(t,
		`{"stream":"invoices","replication_key":"last_update_time","replication_key_value":"2024-03-05T10:00:00Z"}`,
		buf.String())
	assert.Contains(t, buf.String(), "\n  \"stream\"")
}
