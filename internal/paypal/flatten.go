package paypal

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

var (
	errMissingID             = errors.New("missing id")
	errMissingStatus         = errors.New("missing status")
	errMissingLastUpdateTime = errors.New("missing detail.metadata.last_update_time")
)

// Flatten expands one invoice document into its rows, in order: the header
// row, one row per line item in document order, then the refund row if the
// invoice has a refund. Missing optional fields take zero values. A document
// missing a required field or carrying a non-numeric amount yields a
// *FlattenError and no rows.
func Flatten(d *InvoiceDetail) ([]domain.FlatRow, error) {
	if d == nil {
		return nil, &FlattenError{Err: errors.New("nil invoice document")}
	}

	header, err := headerRow(d)
	if err != nil {
		return nil, &FlattenError{InvoiceID: d.ID, Err: err}
	}

	rows := make([]domain.FlatRow, 0, len(d.Items)+2)
	rows = append(rows, header)

	seen := map[string]struct{}{
		domain.HeaderItemName: {},
		domain.RefundItemName: {},
	}
	for i := range d.Items {
		row, err := itemRow(header, &d.Items[i])
		if err != nil {
			return nil, &FlattenError{
				InvoiceID: d.ID,
				Err:       fmt.Errorf("item %d: %w", i+1, err),
			}
		}

		row.ItemName = uniqueItemName(seen, row.ItemName, i+1)
		seen[row.ItemName] = struct{}{}

		rows = append(rows, row)
	}

	if d.Refunds != nil && d.Refunds.RefundAmount != nil {
		row, err := refundRow(header, d.Refunds.RefundAmount)
		if err != nil {
			return nil, &FlattenError{InvoiceID: d.ID, Err: err}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// uniqueItemName keeps (invoice_id, item_name) unique within the invoice. A
// taken name gets a "#<position>" suffix; if that is taken too (an item may
// literally be named "A#3"), the number counts up until the name is free.
func uniqueItemName(seen map[string]struct{}, name string, position int) string {
	if _, taken := seen[name]; !taken {
		return name
	}
	for n := position; ; n++ {
		candidate := name + "#" + strconv.Itoa(n)
		if _, taken := seen[candidate]; !taken {
			return candidate
		}
	}
}

func headerRow(d *InvoiceDetail) (domain.FlatRow, error) {
	if d.ID == "" {
		return domain.FlatRow{}, errMissingID
	}
	if d.Status == "" {
		return domain.FlatRow{}, errMissingStatus
	}

	r := domain.FlatRow{
		InvoiceID: d.ID,
		Status:    d.Status,
		ItemName:  domain.HeaderItemName,
		Kind:      domain.RowHeader,
	}

	// Detail block
	if info := d.Detail; info != nil {
		r.InvoiceNumber = info.InvoiceNumber
		r.InvoiceDate = info.InvoiceDate
		r.CurrencyCode = info.CurrencyCode
		r.Note = info.Note
		if info.Metadata != nil {
			r.LastUpdateTime = info.Metadata.LastUpdateTime
		}
	}
	if r.LastUpdateTime == "" {
		return domain.FlatRow{}, errMissingLastUpdateTime
	}

	// Recipient
	if len(d.PrimaryRecipients) > 0 {
		if bi := d.PrimaryRecipients[0].BillingInfo; bi != nil {
			r.Email = bi.EmailAddress
			r.RecipientName = recipientName(bi.Name)
		}
	}

	// Total
	if d.Amount != nil {
		total, err := d.Amount.Value.Float()
		if err != nil {
			return domain.FlatRow{}, fmt.Errorf("parsing amount %q: %w", d.Amount.Value, err)
		}
		r.TotalInvoice = total
		if r.CurrencyCode == "" {
			r.CurrencyCode = d.Amount.CurrencyCode
		}
	}

	return r, nil
}

func itemRow(header domain.FlatRow, item *InvoiceItem) (domain.FlatRow, error) {
	qty, err := parseQuantity(item.Quantity)
	if err != nil {
		return domain.FlatRow{}, err
	}

	var unitPrice float64
	if item.UnitAmount != nil {
		unitPrice, err = item.UnitAmount.Value.Float()
		if err != nil {
			return domain.FlatRow{}, fmt.Errorf(
				"parsing unit_amount %q: %w", item.UnitAmount.Value, err,
			)
		}
	}

	r := header
	r.Kind = domain.RowItem
	r.ItemName = item.Name
	r.ItemQty = qty
	r.ItemUnitPrice = unitPrice
	r.ItemTotal = float64(qty) * unitPrice
	r.TotalInvoice = 0
	return r, nil
}

// refundRow takes the refund amount as reported by the API; unlike line items
// it is not recomputed.
func refundRow(header domain.FlatRow, amount *Money) (domain.FlatRow, error) {
	refund, err := amount.Value.Float()
	if err != nil {
		return domain.FlatRow{}, fmt.Errorf("parsing refund_amount %q: %w", amount.Value, err)
	}

	r := header
	r.Kind = domain.RowRefund
	r.ItemName = domain.RefundItemName
	r.RefundAmount = refund
	r.TotalInvoice = 0
	return r, nil
}

func parseQuantity(q Decimal) (int64, error) {
	f, err := q.Float()
	if err != nil {
		return 0, fmt.Errorf("parsing quantity %q: %w", q, err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("quantity %q is not a whole number", q)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("quantity %q is out of range", q)
	}
	return int64(f), nil
}

func recipientName(n *PersonName) string {
	if n == nil {
		return ""
	}
	if n.FullName != "" {
		return n.FullName
	}
	return strings.TrimSpace(n.GivenName + " " + n.Surname)
}
