package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestRowQuery_ToSQL(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		query         RowQuery
		wantCountSQL  string
		wantArgs      []any
		wantDataHas   []string
		wantDataNotIn []string
	}{
		{
			name:  "empty query uses defaults",
			query: RowQuery{},
			wantDataHas: []string{
				"FROM invoice_rows",
				"ORDER BY last_update_at ASC NULLS LAST, invoice_id ASC, item_name ASC",
				"LIMIT 100",
				"OFFSET 0",
			},
			wantDataNotIn: []string{"WHERE"},
			wantCountSQL:  "SELECT COUNT(*) FROM invoice_rows",
		},
		{
			name:         "invoice id filter",
			query:        RowQuery{InvoiceID: ptr("INV2-AAAA")},
			wantDataHas:  []string{"WHERE invoice_id = $1"},
			wantCountSQL: "SELECT COUNT(*) FROM invoice_rows WHERE invoice_id = $1",
			wantArgs:     []any{"INV2-AAAA"},
		},
		{
			name:         "updated since filter",
			query:        RowQuery{UpdatedSince: &since},
			wantDataHas:  []string{"WHERE last_update_at >= $1"},
			wantCountSQL: "SELECT COUNT(*) FROM invoice_rows WHERE last_update_at >= $1",
			wantArgs:     []any{since},
		},
		{
			name: "combined filters number parameters in order",
			query: RowQuery{
				Status: ptr("PAID"),
				Kind:   ptr("item"),
			},
			wantDataHas:  []string{"WHERE status = $1 AND kind = $2"},
			wantCountSQL: "SELECT COUNT(*) FROM invoice_rows WHERE status = $1 AND kind = $2",
			wantArgs:     []any{"PAID", "item"},
		},
		{
			name:        "limit clamped to maximum",
			query:       RowQuery{Limit: 50000},
			wantDataHas: []string{"LIMIT 1000"},
		},
		{
			name:        "negative offset clamped to zero",
			query:       RowQuery{Limit: 10, Offset: -5},
			wantDataHas: []string{"LIMIT 10", "OFFSET 0"},
		},
		{
			name:        "offset passed through",
			query:       RowQuery{Offset: 200},
			wantDataHas: []string{"OFFSET 200"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dataSQL, countSQL, args := tt.query.ToSQL()

			for _, s := range tt.wantDataHas {
				assert.Contains(t, dataSQL, s)
			}
			for _, s := range tt.wantDataNotIn {
				assert.NotContains(t, dataSQL, s)
			}
			if tt.wantCountSQL != "" {
				assert.Equal(t, tt.wantCountSQL, countSQL)
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
