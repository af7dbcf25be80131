package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printRunsTable(w io.Writer, runs []domain.SyncRun) error {
	tw := newTabWriter(w)
	tw.writef("ID\tSTATUS\tSTARTED\tCOMPLETED\tWINDOW\tROWS\tSKIPPED\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format(timeLayout)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s..%s\t%d\t%d\t%s\n",
			r.ID,
			r.Status,
			r.StartedAt.Format(timeLayout),
			completed,
			r.StartDate, r.EndDate,
			r.RowsEmitted,
			r.Skipped,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func printRowsTable(w io.Writer, rows []domain.FlatRow) error {
	tw := newTabWriter(w)
	tw.writef("INVOICE\tSTATUS\tUPDATED\tITEM\tQTY\tUNIT\tTOTAL\tREFUND\tCURRENCY\n")
	for i := range rows {
		r := &rows[i]
		tw.writef("%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%s\n",
			r.InvoiceID,
			r.Status,
			r.LastUpdateTime,
			truncate(r.ItemName, 30),
			r.ItemQty,
			r.ItemUnitPrice,
			rowTotal(r),
			r.RefundAmount,
			r.CurrencyCode,
		)
	}
	return tw.finish()
}

// rowTotal shows the invoice total on header rows and the line total on item
// rows.
func rowTotal(r *domain.FlatRow) float64 {
	if r.TotalInvoice != 0 {
		return r.TotalInvoice
	}
	return r.ItemTotal
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
