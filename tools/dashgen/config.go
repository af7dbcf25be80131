package main

import (
	"errors"
	"fmt"
	"slices"
)

// Artifact kinds dashgen can produce.
const (
	KindDashboard = "dashboard"
	KindRules     = "rules"
)

// exportedMetrics are the series tap-paypal serves on /metrics, with the
// histogram suffixes the dashboard queries.
var exportedMetrics = []string{
	"tap_paypal_http_request_duration_seconds_bucket",
	"tap_paypal_http_requests_total",
	"tap_paypal_healthz_up",
	"tap_paypal_readyz_up",
	"tap_paypal_paypal_request_duration_seconds_bucket",
	"tap_paypal_paypal_request_duration_seconds_count",
	"tap_paypal_token_refreshes_total",
	"tap_paypal_token_refresh_failures_total",
	"tap_paypal_search_pages_fetched_total",
	"tap_paypal_drafts_filtered_total",
	"tap_paypal_rows_emitted_total",
	"tap_paypal_invoices_skipped_total",
	"tap_paypal_sync_runs_total",
	"tap_paypal_sync_duration_seconds_bucket",
	"tap_paypal_bookmark_timestamp_seconds",
}

var recordedSeries = []string{
	"tap_paypal:http_requests:rate5m",
	"tap_paypal:http_errors:rate5m",
	"tap_paypal:paypal_requests:rate5m",
	"tap_paypal:rows_emitted:rate5m",
	"tap_paypal:invoices_skipped:rate5m",
}

// Series every Prometheus scrape provides.
var standardSeries = []string{"up", "process_start_time_seconds"}

// KnownMetrics is every name a dashboard or rule expression may select.
var KnownMetrics = metricSet(exportedMetrics, recordedSeries, standardSeries)

func metricSet(groups ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, g := range groups {
		for _, name := range g {
			set[name] = true
		}
	}
	return set
}

// Config controls which artifacts the generator produces and where they go.
type Config struct {
	OutputDir string
	Kinds     []string
}

// DefaultConfig generates everything into ../../deploy, relative to
// tools/dashgen/.
func DefaultConfig() Config {
	return Config{
		OutputDir: "../../deploy",
		Kinds:     []string{KindDashboard, KindRules},
	}
}

// Enabled reports whether kind is generated.
func (c Config) Enabled(kind string) bool {
	return slices.Contains(c.Kinds, kind)
}

// Validate reports every problem with the config at once.
func (c Config) Validate() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory must be set"))
	}
	if len(c.Kinds) == 0 {
		errs = append(errs, errors.New("at least one artifact kind must be enabled"))
	}
	for _, k := range c.Kinds {
		if k != KindDashboard && k != KindRules {
			errs = append(errs, fmt.Errorf("unknown artifact kind %q (want %s or %s)", k, KindDashboard, KindRules))
		}
	}
	return errors.Join(errs...)
}
