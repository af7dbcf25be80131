package rules

const (
	critical = "critical"
	warning  = "warning"
)

// AlertRules returns the operational alerts for a tap-paypal deployment
// running in serve mode.
func AlertRules() PrometheusRule {
	return newResource("tap-paypal-alerts",
		alert("TapPaypalDown",
			`absent(up{job="tap-paypal"})`, "2m", critical,
			"tap-paypal is down",
			"The tap-paypal job has been absent for more than 2 minutes."),
		alert("TapPaypalReadinessDown",
			`tap_paypal_readyz_up == 0`, "2m", critical,
			"tap-paypal readiness check is failing",
			"The database behind tap-paypal has been unreachable for more than 2 minutes."),
		alert("TapPaypalHighErrorRate",
			`tap_paypal:http_errors:rate5m / tap_paypal:http_requests:rate5m > 0.05`, "5m", warning,
			"High HTTP error rate on tap-paypal",
			"More than 5% of API requests are returning 5xx errors over the last 5 minutes."),
		alert("TapPaypalSyncFailing",
			`increase(tap_paypal_sync_runs_total{status="failed"}[1h]) > 0`, "0m", warning,
			"tap-paypal sync runs are failing",
			"At least one sync failed in the last hour. The bookmark does not advance until a run succeeds."),
		alert("TapPaypalTokenRefreshFailing",
			`increase(tap_paypal_token_refresh_failures_total[15m]) > 0`, "5m", critical,
			"PayPal OAuth token refresh is failing",
			"The PayPal client credentials may be revoked or invalid."),
		alert("TapPaypalInvoicesSkipped",
			`sum(tap_paypal:invoices_skipped:rate5m) > 0`, "15m", warning,
			"Invoices are being skipped",
			"Detail fetches or row flattening keep failing. Skipped invoices are lost once the bookmark passes them."),
	)
}
