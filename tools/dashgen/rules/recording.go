package rules

// RecordingRules returns the 5m rate series that the dashboard and the
// alerts query instead of raw counters.
func RecordingRules() PrometheusRule {
	return newResource("tap-paypal-recording-rules",
		record("tap_paypal:http_requests:rate5m",
			`sum(rate(tap_paypal_http_requests_total[5m]))`),
		record("tap_paypal:http_errors:rate5m",
			`sum(rate(tap_paypal_http_requests_total{status=~"5.."}[5m]))`),
		record("tap_paypal:paypal_requests:rate5m",
			`sum by (endpoint) (rate(tap_paypal_paypal_request_duration_seconds_count[5m]))`),
		record("tap_paypal:rows_emitted:rate5m",
			`sum by (kind) (rate(tap_paypal_rows_emitted_total[5m]))`),
		record("tap_paypal:invoices_skipped:rate5m",
			`sum by (reason) (rate(tap_paypal_invoices_skipped_total[5m]))`),
	)
}
