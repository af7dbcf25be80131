// Package validate checks generated dashboards and rules: every PromQL
// expression must parse and reference only known metric names.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/tap-paypal/tools/dashgen/rules"
)

// Result collects validation findings. Errors fail generation; warnings are
// printed.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether there are no errors.
func (r Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) merge(other Result, context string) {
	for _, e := range other.Errors {
		r.Errors = append(r.Errors, context+": "+e)
	}
	for _, w := range other.Warnings {
		r.Warnings = append(r.Warnings, context+": "+w)
	}
}

// Expr parses a PromQL expression and checks its metric names against known.
func Expr(expr string, known map[string]bool) Result {
	var res Result

	node, err := parser.ParseExpr(expr)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("parsing %q: %v", expr, err))
		return res
	}

	selectors := 0
	parser.Inspect(node, func(n parser.Node, _ []parser.Node) error {
		vs, ok := n.(*parser.VectorSelector)
		if !ok {
			return nil
		}
		selectors++
		if vs.Name != "" && !known[vs.Name] {
			res.Errors = append(res.Errors, fmt.Sprintf("unknown metric %q in %q", vs.Name, expr))
		}
		return nil
	})

	if selectors == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%q selects no series", expr))
	}
	return res
}

// panelJSON is the subset of the dashboard JSON model the validator walks.
type panelJSON struct {
	Title   string      `json:"title"`
	Panels  []panelJSON `json:"panels"`
	Targets []struct {
		Expr string `json:"expr"`
	} `json:"targets"`
}

// Dashboard validates every query target of every panel, including panels
// nested in rows.
func Dashboard(dash dashboard.Dashboard, known map[string]bool) Result {
	var res Result

	data, err := json.Marshal(dash)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("marshaling dashboard: %v", err))
		return res
	}
	var model struct {
		Panels []panelJSON `json:"panels"`
	}
	if err := json.Unmarshal(data, &model); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("decoding dashboard: %v", err))
		return res
	}

	var walk func(panels []panelJSON)
	walk = func(panels []panelJSON) {
		for i := range panels {
			p := &panels[i]
			for _, t := range p.Targets {
				res.merge(Expr(t.Expr, known), "panel "+p.Title)
			}
			walk(p.Panels)
		}
	}
	walk(model.Panels)

	return res
}

// Rules validates every rule expression of a PrometheusRule. Recording rules
// of the same resource count as known metrics.
func Rules(cr rules.PrometheusRule, known map[string]bool) Result {
	all := make(map[string]bool, len(known))
	for k, v := range known {
		all[k] = v
	}
	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			if r.Record != "" {
				all[r.Record] = true
			}
		}
	}

	var res Result
	for _, g := range cr.Spec.Groups {
		for _, r := range g.Rules {
			name := r.Record
			if name == "" {
				name = r.Alert
			}
			res.merge(Expr(r.Expr, all), g.Name+"/"+name)
		}
	}
	return res
}
