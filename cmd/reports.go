package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/etnz/cushion/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type statusCmd struct {
	expenses string
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "display balances, runway and net worth" }
func (*statusCmd) Usage() string {
	return `cush status [-e <monthly expenses>]

  Displays the emergency fund, the investments, the debts, the net worth and
  how many months of expenses the emergency fund covers.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.expenses, "e", "", "Monthly expenses. Defaults to CUSHION_MONTHLY_EXPENSES.")
}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return report(ctx, func(s *session) (string, error) {
		expenses := s.cfg.MonthlyExpenses
		if c.expenses != "" {
			var err error
			if expenses, err = cushion.ParseAmount(c.expenses); err != nil {
				return "", err
			}
		}
		st := renderer.NewStatus(date.Today(), s.cfg.Currency, s.state.Ledger, s.state.Trades, expenses)
		return renderer.RenderStatus(st), nil
	})
}

type txCmd struct {
	tail int
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions of a log" }
func (*txCmd) Usage() string {
	return `cush tx [-tail <n>] [emergency|invest]

  Lists the transactions of the emergency fund (default) or of the
  investment account.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.tail, "tail", 0, "Show only the last N transactions.")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := cushion.EmergencyLog
	if f.NArg() > 0 {
		var err error
		if log, err = cushion.ParseLog(f.Arg(0)); err != nil {
			return usageError("%v", err)
		}
	}
	return report(ctx, func(s *session) (string, error) {
		txs, err := s.state.Ledger.Transactions(log)
		if err != nil {
			return "", err
		}
		if c.tail > 0 && len(txs) > c.tail {
			txs = txs[len(txs)-c.tail:]
		}
		balance := s.state.Ledger.CashReserve()
		if log == cushion.InvestLog {
			balance = s.state.Ledger.InvestmentBalance()
		}
		return renderer.RenderTransactions(&renderer.Transactions{Log: log, Transactions: txs, Balance: balance, Currency: s.cfg.Currency}), nil
	})
}

type debtsCmd struct{}

func (*debtsCmd) Name() string     { return "debts" }
func (*debtsCmd) Synopsis() string { return "list debts and their history" }
func (*debtsCmd) Usage() string {
	return `cush debts

  Lists every debt, open or settled, with its history.
`
}

func (*debtsCmd) SetFlags(*flag.FlagSet) {}

func (*debtsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return report(ctx, func(s *session) (string, error) {
		l := s.state.Ledger
		return renderer.RenderDebts(&renderer.Debts{Debts: l.Debts(), Total: l.TotalDebt(), Currency: s.cfg.Currency}), nil
	})
}

type tradesCmd struct {
	quotes bool
}

func (*tradesCmd) Name() string     { return "trades" }
func (*tradesCmd) Synopsis() string { return "display the trading journal" }
func (*tradesCmd) Usage() string {
	return `cush trades [-quotes]

  Displays every trade with its realized profit. With -quotes, the current
  price of open positions is fetched from CUSHION_QUOTE_URL to compute the
  unrealized profit.
`
}

func (c *tradesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.quotes, "quotes", false, "Fetch current prices of open positions.")
}

func (c *tradesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return report(ctx, func(s *session) (string, error) {
		b := s.state.Trades
		var quotes map[string]decimal.Decimal
		if c.quotes {
			if s.cfg.QuoteURL == "" {
				return "", fmt.Errorf("-quotes requires CUSHION_QUOTE_URL")
			}
			src := cushion.QuoteSource{
				URL:    s.cfg.QuoteURL,
				Path:   s.cfg.QuotePath,
				Client: cushion.DailyClient(cacheDir(), s.log),
			}
			var err error
			if quotes, err = src.Quotes(ctx, b.Trades()); err != nil {
				// partial quotes are still worth printing.
				fmt.Fprintln(os.Stderr, "Warning:", err)
			}
		}
		return renderer.RenderTrades(renderer.NewTrades(b.Trades(), b.Stats(), quotes)), nil
	})
}

// cacheDir is where daily quotes are cached.
func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cushion")
}

type chartCmd struct {
	window string
	hide   string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "display the balance histories" }
func (*chartCmd) Usage() string {
	return `cush chart [-w <1M|3M|6M|1Y|ALL>] [-hide <series,...>]

  Displays the cushion, investment and debt balances over time, aligned on
  common dates.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.window, "w", "ALL", "Time window, ending today.")
	f.StringVar(&c.hide, "hide", "", "Comma separated series to hide: cushion, investment, debt.")
}

func (c *chartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := date.ParseWindow(c.window)
	if err != nil {
		return usageError("%v", err)
	}
	var hidden []cushion.SeriesName
	for _, h := range strings.Split(c.hide, ",") {
		if strings.TrimSpace(h) == "" {
			continue
		}
		n, err := cushion.ParseSeriesName(h)
		if err != nil {
			return usageError("%v", err)
		}
		hidden = append(hidden, n)
	}
	return report(ctx, func(s *session) (string, error) {
		return renderer.RenderChart(renderer.NewChart(window, s.state.Ledger.Chart(window, hidden...))), nil
	})
}

type statsCmd struct {
	window   string
	ma       int
	riskFree float64
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "display statistics of a balance history" }
func (*statsCmd) Usage() string {
	return `cush stats [-w <window>] [-ma <n>] [-rf <rate>] <cushion|investment|debt>

  Displays min, max, average, change, volatility, Sharpe ratio, maximum
  drawdown and value at risk of a balance history.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.window, "w", "ALL", "Time window, ending today.")
	f.IntVar(&c.ma, "ma", 0, "Also display the moving average over N points.")
	f.Float64Var(&c.riskFree, "rf", 0, "Risk free value for the Sharpe ratio.")
}

func (c *statsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name := cushion.CushionSeries
	if f.NArg() > 0 {
		var err error
		if name, err = cushion.ParseSeriesName(f.Arg(0)); err != nil {
			return usageError("%v", err)
		}
	}
	window, err := date.ParseWindow(c.window)
	if err != nil {
		return usageError("%v", err)
	}
	return report(ctx, func(s *session) (string, error) {
		l := s.state.Ledger
		h := l.CushionHistory()
		switch name {
		case cushion.InvestmentSeries:
			h = l.InvestmentHistory()
		case cushion.DebtSeries:
			h = l.DebtHistory()
		}
		values := window.Filter(date.Today(), h).Values()
		st := &renderer.Stats{Series: name, Window: window, Description: cushion.Describe(values, c.riskFree)}
		if c.ma > 0 {
			st.MovingAverage, st.MAWindow = cushion.MovingAverage(values, c.ma), c.ma
		}
		return renderer.RenderStats(st), nil
	})
}

type projectCmd struct {
	principal, monthly, rate float64
	years                    int
}

func (*projectCmd) Name() string     { return "project" }
func (*projectCmd) Synopsis() string { return "project savings with compound interest" }
func (*projectCmd) Usage() string {
	return `cush project [-p <principal>] -m <monthly> -r <rate> [-y <years>]

  Projects a principal and a monthly contribution compounded monthly at an
  annual rate in percent. The principal defaults to the investment balance.
`
}

func (c *projectCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.principal, "p", -1, "Starting amount. Defaults to the investment balance.")
	f.Float64Var(&c.monthly, "m", 0, "Monthly contribution.")
	f.Float64Var(&c.rate, "r", 0, "Annual rate, in percent.")
	f.IntVar(&c.years, "y", 10, "Number of years.")
}

func (c *projectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.years <= 0 {
		return usageError("-y must be positive")
	}
	return report(ctx, func(s *session) (string, error) {
		principal := c.principal
		if principal < 0 {
			principal = s.state.Ledger.InvestmentBalance().InexactFloat64()
		}
		return renderer.RenderProjection(renderer.NewProjection(principal, c.monthly, c.rate, c.years, s.cfg.Currency)), nil
	})
}

type payoffCmd struct {
	debt      string
	principal float64
	payment   float64
	rate      float64
}

func (*payoffCmd) Name() string     { return "payoff" }
func (*payoffCmd) Synopsis() string { return "estimate how long it takes to repay a debt" }
func (*payoffCmd) Usage() string {
	return `cush payoff [-debt <debt> | -p <principal>] -m <payment> [-r <rate>]

  Estimates how many monthly payments repay a debt at an annual rate in
  percent.
`
}

func (c *payoffCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.debt, "debt", "", "Debt to repay, by id or name. Its outstanding amount is the principal.")
	f.Float64Var(&c.principal, "p", 0, "Amount to repay.")
	f.Float64Var(&c.payment, "m", 0, "Monthly payment.")
	f.Float64Var(&c.rate, "r", 0, "Annual rate, in percent.")
}

func (c *payoffCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return report(ctx, func(s *session) (string, error) {
		p := &renderer.Payoff{Principal: c.principal, Payment: c.payment, Rate: c.rate, Currency: s.cfg.Currency}
		if c.debt != "" {
			d, err := findDebt(s.state.Ledger, c.debt)
			if err != nil {
				return "", err
			}
			p.Name, p.Principal, p.Currency = d.Name, d.Amount.InexactFloat64(), d.Currency
		}
		p.Months = cushion.DebtPayoffMonths(p.Principal, p.Payment, p.Rate)
		return renderer.RenderPayoff(p), nil
	})
}
