package store

import (
	"fmt"
	"strings"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

const rowOrderBy = "last_update_at ASC NULLS LAST, invoice_id ASC, item_name ASC"

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for an invoice
// row query. It returns the data query, the matching count query, and the
// positional parameters shared by both.
func (q *RowQuery) ToSQL() (dataSQL, countSQL string, args []any) {
	var conditions []string
	paramIdx := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, paramIdx))
		args = append(args, v)
		paramIdx++
	}

	if q.InvoiceID != nil {
		add("invoice_id = $%d", *q.InvoiceID)
	}
	if q.Status != nil {
		add("status = $%d", *q.Status)
	}
	if q.Kind != nil {
		add("kind = $%d", *q.Kind)
	}
	if q.UpdatedSince != nil {
		add("last_update_at >= $%d", *q.UpdatedSince)
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultRowLimit
	}
	limit = min(limit, maxRowLimit)

	offset := max(q.Offset, 0)

	dataSQL = fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT %d OFFSET %d",
		baseInvoiceRowsSelect, whereClause, rowOrderBy, limit, offset,
	)
	countSQL = countInvoiceRowsSelect + whereClause

	return dataSQL, countSQL, args
}
