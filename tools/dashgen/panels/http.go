package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// RequestRate shows service API requests per second.
func RequestRate() *timeseries.PanelBuilder {
	p := lineSeries("Request Rate", "HTTP requests per second", thirdSpan).
		WithTarget(query(`tap_paypal:http_requests:rate5m`, "req/s", "A")).
		Unit("reqps")
	return withTableLegend(p, "mean", "max")
}

// LatencyPercentiles shows p50, p95 and p99 service API latency.
func LatencyPercentiles() *timeseries.PanelBuilder {
	const bucket = "tap_paypal_http_request_duration_seconds_bucket"
	p := lineSeries("Latency Percentiles", "HTTP request duration percentiles", thirdSpan).
		WithTarget(query(quantile("0.50", bucket, ""), "p50", "A")).
		WithTarget(query(quantile("0.95", bucket, ""), "p95", "B")).
		WithTarget(query(quantile("0.99", bucket, ""), "p99", "C")).
		Unit("s")
	return withTableLegend(p, "mean", "max")
}

// ErrorRate shows the share of 5xx responses. A triggered sync that fails
// answers 500, so PayPal outages show up here too.
func ErrorRate() *timeseries.PanelBuilder {
	return lineSeries("Error Rate %", "HTTP 5xx responses as a percentage of all requests", thirdSpan).
		WithTarget(query(
			`tap_paypal:http_errors:rate5m / tap_paypal:http_requests:rate5m * 100`,
			"error %", "A",
		)).
		Unit("percent").
		Thresholds(thresholds("green", from(1, "yellow"), from(5, "red"))).
		ColorScheme(colors(dashboard.FieldColorModeIdThresholds))
}
