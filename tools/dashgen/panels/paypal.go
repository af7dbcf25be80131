package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// APIRequestRate shows PayPal API calls per second by endpoint (token,
// search, detail).
func APIRequestRate() *timeseries.PanelBuilder {
	p := lineSeries("PayPal Requests", "PayPal API requests per second by endpoint", quarterSpan).
		WithTarget(query(`tap_paypal:paypal_requests:rate5m`, "{{endpoint}}", "A")).
		Unit("reqps")
	return withTableLegend(p, "mean", "max")
}

// APILatency shows p95 PayPal API latency by endpoint.
func APILatency() *timeseries.PanelBuilder {
	return lineSeries("PayPal Latency p95", "95th percentile PayPal API request duration by endpoint", quarterSpan).
		WithTarget(query(
			quantile("0.95", "tap_paypal_paypal_request_duration_seconds_bucket", "endpoint"),
			"{{endpoint}}", "A",
		)).
		Unit("s")
}

func TokenRefreshFailures() *stat.PanelBuilder {
	return counterStat("Token Failures (24h)", "Failed OAuth token refreshes in the last 24 hours",
		`increase(`+jobSelector("tap_paypal_token_refresh_failures_total")+`[24h])`, 1, 3)
}

// SearchPages shows search pages fetched and draft invoices dropped per
// minute.
func SearchPages() *timeseries.PanelBuilder {
	return lineSeries("Search Pages / Drafts", "Search pages fetched and draft invoices dropped per minute", quarterSpan).
		WithTarget(query(`rate(`+jobSelector("tap_paypal_search_pages_fetched_total")+`[5m]) * 60`, "pages/min", "A")).
		WithTarget(query(`rate(`+jobSelector("tap_paypal_drafts_filtered_total")+`[5m]) * 60`, "drafts/min", "B"))
}
