package renderer

import (
	"bytes"
	"math"
	"testing"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// toHTML checks that md is valid GitHub flavored markdown.
func toHTML(t *testing.T, md string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, goldmark.New(goldmark.WithExtensions(extension.GFM)).Convert([]byte(md), &buf))
	return buf.String()
}

func newLedger(t *testing.T) *cushion.Ledger {
	t.Helper()
	day := date.MustParse("2025-03-01")
	l := cushion.NewLedger(cushion.WithClock(func() date.Date { return day }))
	_, err := l.RecordEmergencyTx(cushion.Deposit, dec("3000"), "EUR", "Bank", "")
	require.NoError(t, err)
	_, err = l.RecordInvestTx(cushion.In, dec("500"), "EUR", "ETF", "monthly")
	require.NoError(t, err)
	_, err = l.RecordDebt("Car loan", dec("1200"), "EUR")
	require.NoError(t, err)
	return l
}

func TestRenderStatus(t *testing.T) {
	l := newLedger(t)
	b := cushion.NewTradeBook()
	s := NewStatus(date.MustParse("2025-03-01"), "EUR", l, b, dec("1000"))

	md := RenderStatus(s)
	assert.Contains(t, md, "# Cushion on 2025-03-01")
	assert.Contains(t, md, "| Emergency fund | 3 000,0 EUR |")
	assert.Contains(t, md, "**2 300,0 EUR**")
	assert.Contains(t, md, "**3 months**")
	assert.Contains(t, md, "| Car loan | 1 200,0 EUR | 0,0 EUR |")
	assert.NotContains(t, md, "Trades:")
	assert.Contains(t, toHTML(t, md), "<table>")

	s = NewStatus(date.MustParse("2025-03-01"), "EUR", cushion.NewLedger(), b, decimal.Zero)
	md = RenderStatus(s)
	assert.Contains(t, md, "set the monthly expenses")
	assert.NotContains(t, md, "Open Debts")
}

func TestRenderTransactions(t *testing.T) {
	l := newLedger(t)
	_, err := l.RecordEmergencyTx(cushion.Withdraw, dec("250.5"), "EUR", "Garage", "repair")
	require.NoError(t, err)

	md := RenderTransactions(&Transactions{Log: cushion.EmergencyLog, Transactions: l.Emergency(), Balance: l.CashReserve(), Currency: "EUR"})
	assert.Contains(t, md, "# Emergency Transactions")
	assert.Contains(t, md, "| withdraw | -250,5 EUR | Garage | repair |")
	assert.Contains(t, md, "| deposit | +3 000,0 EUR | Bank |")
	assert.Contains(t, md, "Balance: **2 749,5 EUR**")
	assert.Contains(t, toHTML(t, md), "<table>")

	md = RenderTransactions(&Transactions{Log: cushion.InvestLog, Currency: "EUR"})
	assert.Contains(t, md, "No transactions.")
}

func TestRenderDebts(t *testing.T) {
	l := newLedger(t)
	debt := l.Debts()[0]
	_, err := l.RepayDebt(debt.ID, dec("200"))
	require.NoError(t, err)

	md := RenderDebts(&Debts{Debts: l.Debts(), Total: l.TotalDebt(), Currency: "EUR"})
	assert.Contains(t, md, "| open | 1 000,0 EUR | 200,0 EUR |")
	assert.Contains(t, md, "Total outstanding: **1 000,0 EUR**")
	assert.Contains(t, md, "## Car loan")
	assert.Contains(t, md, "| 2025-03-01 | repay | 200,0 |")

	assert.Contains(t, RenderDebts(&Debts{}), "No debts.")
}

func TestRenderTrades(t *testing.T) {
	b := cushion.NewTradeBook()
	open, err := b.OpenTrade("acme", cushion.Buy, dec("10"), dec("100"), date.MustParse("2025-01-02"), "")
	require.NoError(t, err)
	closed, err := b.OpenTrade("BETA", cushion.Sell, dec("5"), dec("20"), date.MustParse("2025-01-03"), "")
	require.NoError(t, err)
	_, err = b.CloseFull(closed.ID, dec("18"))
	require.NoError(t, err)

	v := NewTrades(b.Trades(), b.Stats(), map[string]decimal.Decimal{"ACME": dec("104")})
	require.Len(t, v.Rows, 2)
	assert.True(t, v.Rows[0].Unrealized.Equal(dec("40")), open.ID)
	assert.True(t, v.Rows[1].Realized.Equal(dec("10")))
	assert.False(t, v.Rows[1].HasQuote())

	md := RenderTrades(v)
	assert.Contains(t, md, "| ACME | BUY |")
	assert.Contains(t, md, "+40,0 @ 104,0")
	assert.Contains(t, md, "| closed | +10,0 | - |")
	assert.Contains(t, md, "Win rate: 100.00%")
	assert.Contains(t, toHTML(t, md), "<table>")
}

func TestRenderChart(t *testing.T) {
	l := newLedger(t)
	md := RenderChart(NewChart(date.All, l.Chart(date.All, cushion.InvestmentSeries)))
	assert.Contains(t, md, "| Date | cushion | debt |")
	assert.Contains(t, md, "|:---|---:|---:|")
	assert.Contains(t, md, "| Mar 25 | 3 000,0 | 1 200,0 |")
	assert.Contains(t, toHTML(t, md), "<table>")

	md = RenderChart(NewChart(date.OneMonth, cushion.NewLedger().Chart(date.OneMonth)))
	assert.Contains(t, md, "No data in this window.")
}

func TestRenderStats(t *testing.T) {
	values := []float64{100, 120, 60, 110}
	md := RenderStats(&Stats{
		Series:        cushion.CushionSeries,
		Window:        date.All,
		Description:   cushion.Describe(values, 0),
		MovingAverage: cushion.MovingAverage(values, 2),
		MAWindow:      2,
	})
	assert.Contains(t, md, "# Statistics of cushion (ALL)")
	assert.Contains(t, md, "| Points | 4 |")
	assert.Contains(t, md, "| Change | 10.00% |")
	assert.Contains(t, md, "| Max drawdown | 50.00% |")
	assert.Contains(t, md, "over 2 points: 110,0, 90,0, 85,0")
}

func TestRenderProjection(t *testing.T) {
	p := NewProjection(1000, 100, 0, 2, "EUR")
	require.Len(t, p.Rows, 2)
	assert.Equal(t, 3400.0, p.Rows[1].Value)
	assert.Equal(t, 0.0, p.Rows[1].Gain())

	md := RenderProjection(p)
	assert.Contains(t, md, "| 1 | 2 200,0 | 2 200,0 | 0,0 |")
	assert.Contains(t, toHTML(t, md), "<table>")
}

func TestRenderPayoff(t *testing.T) {
	p := &Payoff{Name: "Card", Principal: 1200, Payment: 100, Rate: 0, Currency: "EUR", Months: 12}
	assert.Equal(t, 1.0, p.Years())
	assert.Equal(t, 1200.0, p.TotalPaid())
	md := RenderPayoff(p)
	assert.Contains(t, md, "# Payoff of Card")
	assert.Contains(t, md, "**12 months** (1 years)")

	p = &Payoff{Principal: 1000, Payment: 5, Rate: 12, Currency: "EUR", Months: math.Inf(1)}
	assert.True(t, p.Never())
	assert.Contains(t, RenderPayoff(p), "never repays")
}
