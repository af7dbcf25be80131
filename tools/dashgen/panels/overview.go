package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
)

// HealthzStat shows the liveness gauge (1 = ok, 0 = failing).
func HealthzStat() *stat.PanelBuilder {
	return upDownStat("Healthz", "Health check status (1 = ok, 0 = failing)", `tap_paypal_healthz_up`)
}

// ReadyzStat shows the readiness gauge, which follows database reachability.
func ReadyzStat() *stat.PanelBuilder {
	return upDownStat("Readyz", "Readiness check status (1 = ready, 0 = not ready)", `tap_paypal_readyz_up`)
}

// BookmarkAge shows how far the replication bookmark trails now. It also
// grows when no invoice has changed, so the thresholds are in days.
func BookmarkAge() *stat.PanelBuilder {
	const day = 86400
	return smallStat("Bookmark Age", "Time since the newest synced invoice update",
		`time() - `+jobSelector("tap_paypal_bookmark_timestamp_seconds")).
		Unit("s").
		Thresholds(thresholds("green", from(2*day, "yellow"), from(7*day, "red"))).
		ColorMode(common.BigValueColorModeBackground)
}

func UptimeStat() *stat.PanelBuilder {
	return smallStat("Uptime", "Time since process start",
		`time() - `+jobSelector("process_start_time_seconds")).
		Unit("s").
		Thresholds(thresholds("green"))
}

func upDownStat(title, description, expr string) *stat.PanelBuilder {
	return smallStat(title, description, expr).
		Thresholds(thresholds("red", from(1, "green"))).
		ColorMode(common.BigValueColorModeBackground).
		TextMode(common.BigValueTextModeValue)
}

func smallStat(title, description, expr string) *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(datasource()).
		Height(statHeight).
		Span(quarterSpan).
		WithTarget(query(expr, "", "A")).
		ColorScheme(colors(dashboard.FieldColorModeIdThresholds)).
		GraphMode(common.BigValueGraphModeNone)
}
