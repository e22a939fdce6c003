// Package renderer turns cushion reports into markdown, using text/template
// and the templates embedded in the templates directory.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"text/template"

	"github.com/etnz/cushion"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.md
var templates embed.FS

// funcs are the helpers available to every template.
var funcs = template.FuncMap{
	"amount": func(v decimal.Decimal, currency string) string { return cushion.FormatAmount(v, currency) },
	"signed": func(v decimal.Decimal, currency string) string {
		if v.IsPositive() {
			return "+" + cushion.FormatAmount(v, currency)
		}
		return cushion.FormatAmount(v, currency)
	},
	"number":  func(v float64) string { return formatFloat(v, "") },
	"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"months":  func(v float64) string { return formatMonths(v) },
	"mulf":    func(a, b float64) float64 { return a * b },
	"title": func(v any) string {
		s := fmt.Sprint(v)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// formatFloat formats v like an amount.
func formatFloat(v float64, currency string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "∞"
	}
	return cushion.FormatAmount(decimal.NewFromFloat(v), currency)
}

func formatMonths(v float64) string {
	if math.IsInf(v, 1) {
		return "never"
	}
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, "templates/"+mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		// An empty file name is a valid case, resulting in an empty template.
		if file != "" {
			content, err = fs.ReadFile(templates, "templates/"+file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}

// RenderStatus renders the balances, the runway and the open debts.
func RenderStatus(s *Status) string {
	partials := map[string]string{
		"status_debts": "status_debts.md",
	}
	if len(s.Debts) == 0 {
		partials["status_debts"] = ""
	}
	return renderTemplate("status", "status.md", partials, s)
}

// RenderTransactions renders one log of transactions.
func RenderTransactions(t *Transactions) string {
	return renderTemplate("transactions", "transactions.md", nil, t)
}

// RenderDebts renders all debts and their history.
func RenderDebts(d *Debts) string {
	return renderTemplate("debts", "debts.md", nil, d)
}

// RenderTrades renders the trading journal.
func RenderTrades(t *Trades) string {
	return renderTemplate("trades", "trades.md", nil, t)
}

// RenderChart renders a chart as a markdown table.
func RenderChart(c *Chart) string {
	return renderTemplate("chart", "chart.md", nil, c)
}

// RenderStats renders the statistics of a series.
func RenderStats(s *Stats) string {
	return renderTemplate("stats", "stats.md", nil, s)
}

// RenderProjection renders a compound growth projection.
func RenderProjection(p *Projection) string {
	return renderTemplate("projection", "projection.md", nil, p)
}

// RenderPayoff renders a debt payoff estimate.
func RenderPayoff(p *Payoff) string {
	return renderTemplate("payoff", "payoff.md", nil, p)
}
