// Package domain defines the core business types for the PayPal invoice tap.
package domain

import (
	"time"
)

// StreamInvoices is the name of the only stream the tap emits.
const StreamInvoices = "invoices"

// ReplicationKey is the row field used to mark incremental progress.
const ReplicationKey = "last_update_time"

// Reserved item names. The header row of an invoice carries HeaderItemName and
// the refund row carries RefundItemName; no line item may use either.
const (
	HeaderItemName = ""
	RefundItemName = "refund"
)

// RowKind identifies which part of an invoice a FlatRow was built from.
type RowKind string

// Row kind constants.
const (
	RowHeader RowKind = "header"
	RowItem   RowKind = "item"
	RowRefund RowKind = "refund"
)

// FlatRow is one flattened invoice record. An invoice expands into one header
// row, one row per line item and an optional refund row. The primary key of
// the stream is (InvoiceID, ItemName).
type FlatRow struct {
	InvoiceID      string `json:"invoice_id"       db:"invoice_id"`
	Status         string `json:"status"           db:"status"`
	InvoiceNumber  string `json:"invoice_number"   db:"invoice_number"`
	InvoiceDate    string `json:"invoice_date"     db:"invoice_date"`
	LastUpdateTime string `json:"last_update_time" db:"last_update_time"`
	CurrencyCode   string `json:"currency_code"    db:"currency_code"`
	Note           string `json:"note"             db:"note"`
	Email          string `json:"email"            db:"email"`
	RecipientName  string `json:"recipient_name"   db:"recipient_name"`

	// Amounts
	TotalInvoice float64 `json:"total_invoice" db:"total_invoice"`
	RefundAmount float64 `json:"refund_amount" db:"refund_amount"`

	// Line item
	ItemName      string  `json:"item_name"       db:"item_name"`
	ItemQty       int64   `json:"item_qty"        db:"item_qty"`
	ItemUnitPrice float64 `json:"item_unit_price" db:"item_unit_price"`
	ItemTotal     float64 `json:"item_total"      db:"item_total"`

	Kind RowKind `json:"-" db:"-"`
}

// RowKey is the primary key of a FlatRow.
type RowKey struct {
	InvoiceID string
	ItemName  string
}

// Key returns the row's primary key.
func (r *FlatRow) Key() RowKey {
	return RowKey{InvoiceID: r.InvoiceID, ItemName: r.ItemName}
}

// Bookmark is the persisted replication state of a stream.
type Bookmark struct {
	Stream         string    `json:"stream"                 db:"stream"`
	ReplicationKey string    `json:"replication_key"        db:"replication_key"`
	Value          string    `json:"replication_key_value"  db:"replication_key_value"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"    db:"updated_at"`
}

// Sync run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusCrashed   = "crashed"
)

// SyncRun records a single execution of the invoice sync.
type SyncRun struct {
	ID           string     `json:"id"                     db:"id"`
	StartedAt    time.Time  `json:"started_at"             db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Status       string     `json:"status"                 db:"status"`
	ErrorText    string     `json:"error_text,omitempty"   db:"error_text"`
	StartDate    string     `json:"start_date"             db:"start_date"`
	EndDate      string     `json:"end_date"               db:"end_date"`
	RowsEmitted  int        `json:"rows_emitted"           db:"rows_emitted"`
	Skipped      int        `json:"invoices_skipped"       db:"invoices_skipped"`
	BookmarkTime string     `json:"bookmark,omitempty"     db:"bookmark"`
}
