// Package panels provides Grafana dashboard panel builders for tap-paypal
// metrics.
package panels

import (
	"github.com/grafana/grafana-foundation-sdk/go/cog"
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// Job is the Prometheus job label of the tap-paypal service.
const Job = "tap-paypal"

// Panel sizes on the 24-column grid. Rows of four use quarterSpan.
const (
	statHeight = 4
	tsHeight   = 8

	quarterSpan = 6
	thirdSpan   = 8
)

func datasource() dashboard.DataSourceRef {
	return dashboard.DataSourceRef{
		Type: cog.ToPtr("prometheus"),
		Uid:  cog.ToPtr("${datasource}"),
	}
}

func query(expr, legend, refID string) *prometheus.DataqueryBuilder {
	return prometheus.NewDataqueryBuilder().
		Expr(expr).
		LegendFormat(legend).
		RefId(refID)
}

// jobSelector scopes a metric name to the tap-paypal job.
func jobSelector(metric string) string {
	return metric + `{job="` + Job + `"}`
}

// quantile builds a histogram_quantile expression over a bucket series,
// optionally keeping one extra grouping label.
func quantile(q, bucket, by string) string {
	group := "le"
	if by != "" {
		group = by + ", le"
	}
	return "histogram_quantile(" + q + ", sum(rate(" + jobSelector(bucket) + "[5m])) by (" + group + "))"
}

// thresholds builds absolute thresholds. The first step is the base color;
// later steps start at their value.
func thresholds(base string, steps ...dashboard.Threshold) cog.Builder[dashboard.ThresholdsConfig] {
	return dashboard.NewThresholdsConfigBuilder().
		Mode(dashboard.ThresholdsModeAbsolute).
		Steps(append([]dashboard.Threshold{{Color: base}}, steps...))
}

func from(value float64, color string) dashboard.Threshold {
	return dashboard.Threshold{Value: cog.ToPtr(value), Color: color}
}

func colors(mode dashboard.FieldColorModeId) cog.Builder[dashboard.FieldColor] {
	return dashboard.NewFieldColorBuilder().Mode(mode)
}

// lineSeries is the common shape of every timeseries panel on the
// dashboard: palette colors and a thin filled line.
func lineSeries(title, description string, span uint32) *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(datasource()).
		Height(tsHeight).
		Span(span).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(thresholds("green")).
		ColorScheme(colors(dashboard.FieldColorModeIdPaletteClassic)).
		DrawStyle(common.GraphDrawStyleLine)
}

// withTableLegend adds a bottom table legend and a sorted multi-series
// tooltip.
func withTableLegend(p *timeseries.PanelBuilder, calcs ...string) *timeseries.PanelBuilder {
	return p.
		Legend(common.NewVizLegendOptionsBuilder().
			DisplayMode(common.LegendDisplayModeTable).
			Placement(common.LegendPlacementBottom).
			Calcs(calcs)).
		Tooltip(common.NewVizTooltipOptionsBuilder().
			Mode(common.TooltipDisplayModeMulti).
			Sort(common.SortOrderDescending))
}

// counterStat shows a 24h counter increase that turns yellow, then red.
func counterStat(title, description, expr string, yellow, red float64) *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(datasource()).
		Height(tsHeight).
		Span(quarterSpan).
		WithTarget(query(expr, "", "A")).
		Thresholds(thresholds("green", from(yellow, "yellow"), from(red, "red"))).
		ColorScheme(colors(dashboard.FieldColorModeIdThresholds)).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
