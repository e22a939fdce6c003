package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/google/subcommands"
)

// recordCmd records a transaction in the emergency or the investment log.
type recordCmd struct {
	name     string
	log      cushion.Log
	typ      cushion.TxType
	synopsis string

	currency string
	note     string
}

func newTxCmd(name string, log cushion.Log, typ cushion.TxType, synopsis string) *recordCmd {
	return &recordCmd{name: name, log: log, typ: typ, synopsis: synopsis}
}

func (c *recordCmd) Name() string     { return c.name }
func (c *recordCmd) Synopsis() string { return c.synopsis }
func (c *recordCmd) Usage() string {
	return fmt.Sprintf(`cush %s [-c <currency>] [-n <note>] <amount> <place>

  Records a %q transaction in the %s log. The amount accepts ',' or '.' as
  decimal separator and spaces as thousands separator.

  A transaction that would make the balance negative is refused.
`, c.name, c.typ, c.log)
}

func (c *recordCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "Currency code. Defaults to CUSHION_CURRENCY.")
	f.StringVar(&c.note, "n", "", "A free note.")
}

func (c *recordCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return usageError("%s requires an amount and a place", c.name)
	}
	amount, err := cushion.ParseAmount(f.Arg(0))
	if err != nil {
		return usageError("%v", err)
	}
	place := strings.Join(f.Args()[1:], " ")

	return mutate(ctx, func(s *session) error {
		currency := c.currency
		if currency == "" {
			currency = s.cfg.Currency
		}
		var tx cushion.Transaction
		if c.log == cushion.InvestLog {
			tx, err = s.state.Ledger.RecordInvestTx(c.typ, amount, currency, place, c.note)
		} else {
			tx, err = s.state.Ledger.RecordEmergencyTx(c.typ, amount, currency, place, c.note)
		}
		if err != nil {
			return err
		}
		balance := s.state.Ledger.CashReserve()
		if c.log == cushion.InvestLog {
			balance = s.state.Ledger.InvestmentBalance()
		}
		fmt.Fprintf(stdout, "%s %s (%s), balance is now %s\n", tx.Type, cushion.FormatAmount(tx.Amount, tx.Currency), tx.ID, cushion.FormatAmount(balance, currency))
		return nil
	})
}

type borrowCmd struct {
	id       string
	currency string
}

func (*borrowCmd) Name() string     { return "borrow" }
func (*borrowCmd) Synopsis() string { return "record a new debt, or increase one" }
func (*borrowCmd) Usage() string {
	return `cush borrow [-c <currency>] <amount> <name>
cush borrow -id <debt> <amount>

  Records a new debt, or with -id adds amount to an open debt. The debt is
  referred to by its id or its name.
`
}

func (c *borrowCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Debt to increase, by id or name.")
	f.StringVar(&c.currency, "c", "", "Currency code of a new debt. Defaults to CUSHION_CURRENCY.")
}

func (c *borrowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || (c.id == "" && f.NArg() < 2) {
		return usageError("borrow requires an amount, and a name for a new debt")
	}
	amount, err := cushion.ParseAmount(f.Arg(0))
	if err != nil {
		return usageError("%v", err)
	}
	return mutate(ctx, func(s *session) error {
		var d cushion.DebtRecord
		if c.id != "" {
			if d, err = findDebt(s.state.Ledger, c.id); err != nil {
				return err
			}
			d, err = s.state.Ledger.IncreaseDebt(d.ID, amount)
		} else {
			currency := c.currency
			if currency == "" {
				currency = s.cfg.Currency
			}
			d, err = s.state.Ledger.RecordDebt(strings.Join(f.Args()[1:], " "), amount, currency)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s) is now %s\n", d.Name, d.ID, cushion.FormatAmount(d.Amount, d.Currency))
		return nil
	})
}

type repayCmd struct{}

func (*repayCmd) Name() string     { return "repay" }
func (*repayCmd) Synopsis() string { return "record a debt repayment" }
func (*repayCmd) Usage() string {
	return `cush repay <debt> <amount>

  Records a repayment of a debt, referred to by its id or its name. Repaying
  more than the outstanding amount is refused.
`
}

func (*repayCmd) SetFlags(*flag.FlagSet) {}

func (*repayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usageError("repay requires a debt and an amount")
	}
	amount, err := cushion.ParseAmount(f.Arg(1))
	if err != nil {
		return usageError("%v", err)
	}
	return mutate(ctx, func(s *session) error {
		d, err := findDebt(s.state.Ledger, f.Arg(0))
		if err != nil {
			return err
		}
		if d, err = s.state.Ledger.RepayDebt(d.ID, amount); err != nil {
			return err
		}
		if d.Settled() {
			fmt.Fprintf(stdout, "%s is settled\n", d.Name)
			return nil
		}
		fmt.Fprintf(stdout, "%s has %s left to repay\n", d.Name, cushion.FormatAmount(d.Amount, d.Currency))
		return nil
	})
}

type settleCmd struct{}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "repay the whole outstanding amount of a debt" }
func (*settleCmd) Usage() string {
	return `cush settle <debt>

  Records the repayment of the whole outstanding amount of a debt.
`
}

func (*settleCmd) SetFlags(*flag.FlagSet) {}

func (*settleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("settle requires a debt")
	}
	return mutate(ctx, func(s *session) error {
		d, err := findDebt(s.state.Ledger, f.Arg(0))
		if err != nil {
			return err
		}
		if d, err = s.state.Ledger.CloseDebt(d.ID); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s is settled\n", d.Name)
		return nil
	})
}

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete an entry from a log" }
func (*rmCmd) Usage() string {
	return `cush rm <emergency|invest|debt|trade> <id>

  Deletes an entry. Balances are recomputed from the remaining entries; a
  deletion that would make a balance negative is refused.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (*rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usageError("rm requires a log and an id")
	}
	log, err := cushion.ParseLog(f.Arg(0))
	if err != nil {
		return usageError("%v", err)
	}
	id := f.Arg(1)
	return mutate(ctx, func(s *session) error {
		if log == cushion.TradeLog {
			err = s.state.Trades.DeleteTrade(id)
		} else {
			err = s.state.Ledger.DeleteTransaction(log, id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted %s from the %s log\n", id, log)
		return nil
	})
}

type openCmd struct {
	date string
	note string
}

func (*openCmd) Name() string     { return "open" }
func (*openCmd) Synopsis() string { return "open a trade" }
func (*openCmd) Usage() string {
	return `cush open [-d <date>] [-n <note>] <BUY|SELL> <symbol> <qty> <price>

  Records a new position in the trading journal.
`
}

func (c *openCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Date of the trade, YYYY-MM-DD. Defaults to today.")
	f.StringVar(&c.note, "n", "", "A free note.")
}

func (c *openCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 4 {
		return usageError("open requires a side, a symbol, a quantity and a price")
	}
	side, err := cushion.ParseSide(f.Arg(0))
	if err != nil {
		return usageError("%v", err)
	}
	qty, err := cushion.ParseAmount(f.Arg(2))
	if err != nil {
		return usageError("quantity: %v", err)
	}
	price, err := cushion.ParseAmount(f.Arg(3))
	if err != nil {
		return usageError("price: %v", err)
	}
	var on date.Date
	if c.date != "" {
		if on, err = date.Parse(c.date); err != nil {
			return usageError("%v", err)
		}
	}
	return mutate(ctx, func(s *session) error {
		t, err := s.state.Trades.OpenTrade(f.Arg(1), side, qty, price, on, c.note)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "opened %s %s %s @ %s (%s)\n", t.Side, t.Qty, t.Symbol, t.Price, t.ID)
		return nil
	})
}

type closeCmd struct {
	qty string
}

func (*closeCmd) Name() string     { return "close" }
func (*closeCmd) Synopsis() string { return "close a trade, fully or partially" }
func (*closeCmd) Usage() string {
	return `cush close [-q <qty>] <trade> <price>

  Closes the remaining quantity of a trade at price, or only qty with -q.
`
}

func (c *closeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.qty, "q", "", "Quantity to close. Defaults to the remaining quantity.")
}

func (c *closeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usageError("close requires a trade and a price")
	}
	price, err := cushion.ParseAmount(f.Arg(1))
	if err != nil {
		return usageError("price: %v", err)
	}
	return mutate(ctx, func(s *session) error {
		id := f.Arg(0)
		if c.qty == "" {
			_, err = s.state.Trades.CloseFull(id, price)
		} else {
			qty, perr := cushion.ParseAmount(c.qty)
			if perr != nil {
				return perr
			}
			_, err = s.state.Trades.ClosePartial(id, qty, price)
		}
		if err != nil {
			return err
		}
		t, _ := s.state.Trades.Trade(id)
		fmt.Fprintf(stdout, "%s: %s remaining, realized %s\n", t.Symbol, t.RemainingQty, cushion.FormatAmount(cushion.RealizedPnL(t), ""))
		return nil
	})
}

type rmTradeCmd struct{}

func (*rmTradeCmd) Name() string     { return "rmtrade" }
func (*rmTradeCmd) Synopsis() string { return "delete a trade and its closures" }
func (*rmTradeCmd) Usage() string {
	return `cush rmtrade <trade>

  Deletes a trade from the trading journal.
`
}

func (*rmTradeCmd) SetFlags(*flag.FlagSet) {}

func (*rmTradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("rmtrade requires a trade")
	}
	return mutate(ctx, func(s *session) error {
		if err := s.state.Trades.DeleteTrade(f.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "deleted trade %s\n", f.Arg(0))
		return nil
	})
}
