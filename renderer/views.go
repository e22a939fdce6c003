package renderer

import (
	"math"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
)

// Status is the data of the status report.
type Status struct {
	Date     date.Date
	Currency string
	cushion.Summary
	Debts  []cushion.DebtRecord // open debts only
	Trades cushion.TradeStats
}

// NewStatus builds the status report of a ledger and a journal.
func NewStatus(on date.Date, currency string, l *cushion.Ledger, b *cushion.TradeBook, monthlyExpenses decimal.Decimal) *Status {
	s := &Status{
		Date:     on,
		Currency: currency,
		Summary:  l.Summary(monthlyExpenses),
		Trades:   b.Stats(),
	}
	for _, d := range l.Debts() {
		if !d.Settled() {
			s.Debts = append(s.Debts, d)
		}
	}
	return s
}

// HasRunway reports whether monthly expenses are known.
func (s *Status) HasRunway() bool { return s.MonthlyExpenses.IsPositive() }

// Transactions is the data of a transaction list.
type Transactions struct {
	Log          cushion.Log
	Transactions []cushion.Transaction
	Balance      decimal.Decimal
	Currency     string
}

// Debts is the data of the debt list.
type Debts struct {
	Debts    []cushion.DebtRecord
	Total    decimal.Decimal
	Currency string
}

// TradeRow is one trade and its profits.
type TradeRow struct {
	cushion.Trade
	Realized   decimal.Decimal
	Unrealized decimal.Decimal
	Quote      decimal.Decimal // zero when unknown
}

// HasQuote reports whether a current price was found.
func (r TradeRow) HasQuote() bool { return r.Quote.IsPositive() }

// Trades is the data of the trading journal.
type Trades struct {
	Rows  []TradeRow
	Stats cushion.TradeStats
}

// NewTrades computes profits of every trade. quotes holds current prices by
// symbol, and may be nil.
func NewTrades(trades []cushion.Trade, stats cushion.TradeStats, quotes map[string]decimal.Decimal) *Trades {
	t := &Trades{Stats: stats}
	for _, tr := range trades {
		row := TradeRow{Trade: tr, Realized: cushion.RealizedPnL(tr)}
		if q, ok := quotes[tr.Symbol]; ok && !tr.Closed() {
			row.Quote = q
			row.Unrealized = cushion.UnrealizedPnL(tr, q)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Chart is the data of a chart table.
type Chart struct {
	Window date.Window
	Header []string
	Rows   [][]string
}

// NewChart lays c out as rows, one per label.
func NewChart(window date.Window, c cushion.Chart) *Chart {
	v := &Chart{Window: window, Header: []string{"Date"}}
	for _, ds := range c.Datasets {
		v.Header = append(v.Header, string(ds.Name))
	}
	for i, label := range c.Labels {
		row := []string{label}
		for _, ds := range c.Datasets {
			row = append(row, formatFloat(ds.Values[i], ""))
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Stats is the data of the statistics report.
type Stats struct {
	Series        cushion.SeriesName
	Window        date.Window
	Description   cushion.Description
	MovingAverage []float64
	MAWindow      int
}

// Projection is the data of a compound growth projection.
type Projection struct {
	Principal, Monthly, Rate float64
	Years                    int
	Currency                 string
	Rows                     []ProjectionRow
}

// ProjectionRow is the projected value at the end of a year.
type ProjectionRow struct {
	Year        int
	Contributed float64
	Value       float64
}

// Gain returns the value above the contributions.
func (r ProjectionRow) Gain() float64 { return r.Value - r.Contributed }

// NewProjection projects principal and monthly contributions for years.
func NewProjection(principal, monthly, rate float64, years int, currency string) *Projection {
	p := &Projection{Principal: principal, Monthly: monthly, Rate: rate, Years: years, Currency: currency}
	for y := 1; y <= years; y++ {
		p.Rows = append(p.Rows, ProjectionRow{
			Year:        y,
			Contributed: principal + monthly*12*float64(y),
			Value:       cushion.FutureValue(principal, monthly, rate, float64(y)),
		})
	}
	return p
}

// Payoff is the data of a debt payoff estimate.
type Payoff struct {
	Name                     string
	Principal, Payment, Rate float64
	Currency                 string
	Months                   float64
}

// Never reports whether the debt is never repaid.
func (p *Payoff) Never() bool { return math.IsInf(p.Months, 1) }

// Years returns the payoff time in years.
func (p *Payoff) Years() float64 { return p.Months / 12 }

// TotalPaid returns the sum of all payments, the last one being partial.
func (p *Payoff) TotalPaid() float64 {
	if p.Never() {
		return math.Inf(1)
	}
	if p.Rate == 0 {
		return p.Principal
	}
	return p.Payment * p.Months
}
