package paypal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Decimal is a numeric API value. PayPal encodes amounts and quantities as
// JSON strings; Decimal also accepts bare numbers and null.
type Decimal string

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*d = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Decimal(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decimal: %w", err)
		}
		*d = Decimal(n.String())
	}
	return nil
}

// Float parses the value. An empty value is zero.
func (d Decimal) Float() (float64, error) {
	if d == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(d), 64)
}

// Link is a HATEOAS link attached to API resources.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel,omitempty"`
	Method string `json:"method,omitempty"`
}

// Money holds an amount with its currency.
type Money struct {
	CurrencyCode string  `json:"currency_code,omitempty"`
	Value        Decimal `json:"value"`
}

// InvoiceDetail is the full invoice document returned by the detail endpoint.
type InvoiceDetail struct {
	ID                string         `json:"id"`
	Status            string         `json:"status"`
	Detail            *InvoiceInfo   `json:"detail,omitempty"`
	PrimaryRecipients []Recipient    `json:"primary_recipients,omitempty"`
	Items             []InvoiceItem  `json:"items,omitempty"`
	Amount            *Money         `json:"amount,omitempty"`
	Refunds           *RefundSummary `json:"refunds,omitempty"`
	Links             []Link         `json:"links,omitempty"`
}

// InvoiceInfo holds the invoice-level detail block.
type InvoiceInfo struct {
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceDate   string           `json:"invoice_date,omitempty"`
	CurrencyCode  string           `json:"currency_code,omitempty"`
	Note          string           `json:"note,omitempty"`
	Metadata      *InvoiceMetadata `json:"metadata,omitempty"`
}

// InvoiceMetadata holds audit timestamps.
type InvoiceMetadata struct {
	CreateTime     string `json:"create_time,omitempty"`
	LastUpdateTime string `json:"last_update_time,omitempty"`
}

// Recipient is an invoice recipient.
type Recipient struct {
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
}

// BillingInfo holds a recipient's contact details.
type BillingInfo struct {
	EmailAddress string      `json:"email_address,omitempty"`
	Name         *PersonName `json:"name,omitempty"`
}

// PersonName is a recipient's name.
type PersonName struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
	FullName  string `json:"full_name,omitempty"`
}

// InvoiceItem is one line item of an invoice.
type InvoiceItem struct {
	Name       string  `json:"name"`
	Quantity   Decimal `json:"quantity"`
	UnitAmount *Money  `json:"unit_amount,omitempty"`
}

// RefundSummary holds the refunds applied to an invoice.
type RefundSummary struct {
	RefundAmount *Money `json:"refund_amount,omitempty"`
}

// SearchResultItem is one invoice summary from a search page.
type SearchResultItem struct {
	ID         string
	Status     string
	DetailLink string
}

type searchAPIItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

type searchAPIResponse struct {
	Items      *[]searchAPIItem `json:"items"`
	TotalItems int              `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

type searchDateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type searchField struct {
	Field string `json:"field"`
}

type searchAPIRequest struct {
	InvoiceDateRange searchDateRange `json:"invoice_date_range"`
	Fields           []searchField   `json:"fields"`
}

// detailLink picks the link to an invoice's full document: the "self" link
// when present, otherwise the first link with an href.
func detailLink(links []Link) string {
	for _, l := range links {
		if l.Rel == "self" && l.Href != "" {
			return l.Href
		}
	}
	for _, l := range links {
		if l.Href != "" {
			return l.Href
		}
	}
	return ""
}
