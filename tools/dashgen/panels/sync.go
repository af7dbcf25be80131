package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// SyncRuns shows finished sync runs per hour as bars stacked by status.
func SyncRuns() *timeseries.PanelBuilder {
	return lineSeries("Sync Runs / h", "Finished sync runs per hour by status", quarterSpan).
		WithTarget(query(
			`sum by (status) (increase(`+jobSelector("tap_paypal_sync_runs_total")+`[1h]))`,
			"{{status}}", "A",
		)).
		FillOpacity(30).
		LineWidth(1).
		DrawStyle(common.GraphDrawStyleBars)
}

func SyncDuration() *timeseries.PanelBuilder {
	const bucket = "tap_paypal_sync_duration_seconds_bucket"
	return lineSeries("Sync Duration", "Sync run duration percentiles", quarterSpan).
		WithTarget(query(quantile("0.50", bucket, ""), "p50", "A")).
		WithTarget(query(quantile("0.95", bucket, ""), "p95", "B")).
		Unit("s")
}

// RowsEmitted shows rows written per minute by row kind.
func RowsEmitted() *timeseries.PanelBuilder {
	p := lineSeries("Rows / min", "Rows emitted per minute by kind (header, item, refund)", quarterSpan).
		WithTarget(query(`tap_paypal:rows_emitted:rate5m * 60`, "{{kind}}", "A"))
	return withTableLegend(p, "sum", "max")
}

// SkippedInvoices counts invoices skipped in the last 24 hours. They are not
// retried once the bookmark passes them.
func SkippedInvoices() *stat.PanelBuilder {
	return counterStat("Skipped Invoices (24h)", "Invoices skipped after a detail fetch or flatten error",
		`sum(increase(`+jobSelector("tap_paypal_invoices_skipped_total")+`[24h]))`, 1, 10)
}
