package cmd

import (
	"bytes"
	"context"
	"flag"
	"io"
	"path/filepath"
	"testing"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup points the global flags to a fresh state file and captures stdout.
func setup(t *testing.T) (path string, out *bytes.Buffer) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CUSHION_STORE", "")
	t.Setenv("CUSHION_CURRENCY", "EUR")
	t.Setenv("CUSHION_MONTHLY_EXPENSES", "500")

	path = filepath.Join(t.TempDir(), "books.jsonl")
	oldState, oldRaw, oldStdout := *stateFile, *raw, stdout
	*stateFile, *raw = path, true
	out = new(bytes.Buffer)
	stdout = out
	t.Cleanup(func() { *stateFile, *raw, stdout = oldState, oldRaw, oldStdout })
	return path, out
}

// run parses args for c and executes it.
func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	f.SetOutput(io.Discard)
	c.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return c.Execute(context.Background(), f)
}

func load(t *testing.T, path string) cushion.State {
	t.Helper()
	s, err := cushion.LoadState(path)
	require.NoError(t, err)
	return s
}

func TestEmergencyFund(t *testing.T) {
	path, out := setup(t)
	deposit := newTxCmd("deposit", cushion.EmergencyLog, cushion.Deposit, "")
	withdraw := newTxCmd("withdraw", cushion.EmergencyLog, cushion.Withdraw, "")

	assert.Equal(t, subcommands.ExitSuccess, run(t, deposit, "1 000", "Main", "bank"))
	assert.Contains(t, out.String(), "balance is now 1 000,0 EUR")

	assert.Equal(t, subcommands.ExitFailure, run(t, withdraw, "2000", "ATM"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, withdraw, "abc", "ATM"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, withdraw, "10"))

	assert.Equal(t, subcommands.ExitSuccess, run(t, withdraw, "250,5", "ATM"))

	s := load(t, path)
	assert.Equal(t, "749.5", s.Ledger.CashReserve().String())
	txs := s.Ledger.Emergency()
	require.Len(t, txs, 2)
	assert.Equal(t, "Main bank", txs[0].Place)

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &rmCmd{}, "emergency", txs[1].ID))
	assert.Contains(t, out.String(), "deleted "+txs[1].ID)
	assert.Equal(t, "1000", load(t, path).Ledger.CashReserve().String())

	assert.Equal(t, subcommands.ExitFailure, run(t, &rmCmd{}, "emergency", "nope"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &rmCmd{}, "savings", "nope"))
}

func TestInvestments(t *testing.T) {
	path, _ := setup(t)
	invest := newTxCmd("invest", cushion.InvestLog, cushion.In, "")
	divest := newTxCmd("divest", cushion.InvestLog, cushion.Out, "")

	assert.Equal(t, subcommands.ExitSuccess, run(t, invest, "-n", "monthly", "300", "ETF"))
	assert.Equal(t, subcommands.ExitFailure, run(t, divest, "301", "ETF"))
	assert.Equal(t, subcommands.ExitSuccess, run(t, divest, "100", "ETF"))

	s := load(t, path)
	assert.Equal(t, "200", s.Ledger.InvestmentBalance().String())
	assert.Equal(t, "monthly", s.Ledger.Invest()[0].Note)
}

func TestDebts(t *testing.T) {
	path, out := setup(t)

	assert.Equal(t, subcommands.ExitSuccess, run(t, &borrowCmd{}, "1200", "Car"))
	assert.Contains(t, out.String(), "is now 1 200,0 EUR")
	assert.Equal(t, subcommands.ExitSuccess, run(t, &borrowCmd{}, "-id", "car", "300"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &repayCmd{}, "Car", "500"))
	assert.Equal(t, "Car has 1 000,0 EUR left to repay\n", out.String())

	assert.Equal(t, subcommands.ExitFailure, run(t, &repayCmd{}, "Car", "5000"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &repayCmd{}, "House", "10"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &settleCmd{}, "car"))
	assert.Equal(t, "Car is settled\n", out.String())

	s := load(t, path)
	assert.True(t, s.Ledger.TotalDebt().IsZero())
	require.Len(t, s.Ledger.Debts(), 1)
	assert.True(t, s.Ledger.Debts()[0].Settled())

	// a settled debt is not found by name anymore.
	assert.Equal(t, subcommands.ExitFailure, run(t, &repayCmd{}, "Car", "1"))
}

func TestTrades(t *testing.T) {
	path, out := setup(t)

	assert.Equal(t, subcommands.ExitSuccess, run(t, &openCmd{}, "-d", "2025-05-02", "buy", "AAPL", "10", "100"))
	assert.Contains(t, out.String(), "opened BUY 10 AAPL @ 100")
	assert.Equal(t, subcommands.ExitUsageError, run(t, &openCmd{}, "hold", "AAPL", "10", "100"))

	trades := load(t, path).Trades.Trades()
	require.Len(t, trades, 1)
	id := trades[0].ID

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &closeCmd{}, "-q", "4", id, "110"))
	assert.Equal(t, "AAPL: 6 remaining, realized 40,0\n", out.String())
	assert.Equal(t, subcommands.ExitFailure, run(t, &closeCmd{}, "-q", "7", id, "110"))
	assert.Equal(t, subcommands.ExitSuccess, run(t, &closeCmd{}, id, "90"))

	tr, ok := load(t, path).Trades.Trade(id)
	require.True(t, ok)
	assert.True(t, tr.RemainingQty.IsZero())

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &tradesCmd{}))
	assert.Contains(t, out.String(), "AAPL")

	assert.Equal(t, subcommands.ExitSuccess, run(t, &rmTradeCmd{}, id))
	assert.Empty(t, load(t, path).Trades.Trades())
}

func TestReports(t *testing.T) {
	_, out := setup(t)
	require.Equal(t, subcommands.ExitSuccess, run(t, newTxCmd("deposit", cushion.EmergencyLog, cushion.Deposit, ""), "1500", "Bank"))
	require.Equal(t, subcommands.ExitSuccess, run(t, &borrowCmd{}, "600", "Loan"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &statusCmd{}))
	assert.Contains(t, out.String(), "# Cushion on")
	assert.Contains(t, out.String(), "| Emergency fund | 1 500,0 EUR |")
	assert.Contains(t, out.String(), "**3 months**")
	assert.Contains(t, out.String(), "| Loan |")

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &statusCmd{}, "-e", "1000"))
	assert.Contains(t, out.String(), "**1.5 months**")

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &txCmd{}, "emergency"))
	assert.Contains(t, out.String(), "Balance: **1 500,0 EUR**")
	assert.Equal(t, subcommands.ExitUsageError, run(t, &txCmd{}, "savings"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &debtsCmd{}))
	assert.Contains(t, out.String(), "Total outstanding: **600,0 EUR**")

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &chartCmd{}, "-w", "1M", "-hide", "investment"))
	assert.Contains(t, out.String(), "# Balances (1M)")
	assert.Equal(t, subcommands.ExitUsageError, run(t, &chartCmd{}, "-w", "2W"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &chartCmd{}, "-hide", "savings"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &statsCmd{}, "cushion"))
	assert.Contains(t, out.String(), "# Statistics of cushion")
	assert.Equal(t, subcommands.ExitUsageError, run(t, &statsCmd{}, "savings"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &projectCmd{}, "-p", "1000", "-m", "100", "-y", "1"))
	assert.Contains(t, out.String(), "| 1 | 2 200,0 | 2 200,0 | 0,0 |")
	assert.Equal(t, subcommands.ExitUsageError, run(t, &projectCmd{}, "-y", "0"))

	out.Reset()
	assert.Equal(t, subcommands.ExitSuccess, run(t, &payoffCmd{}, "-debt", "loan", "-m", "100"))
	assert.Contains(t, out.String(), "# Payoff of Loan")
	assert.Contains(t, out.String(), "**6 months**")
	assert.Equal(t, subcommands.ExitFailure, run(t, &payoffCmd{}, "-debt", "house", "-m", "100"))
}

// remoteCount counts the records of log in the store at path.
func remoteCount(t *testing.T, path string, log cushion.Log) int {
	t.Helper()
	st, err := store.Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()
	records, err := st.Load(context.Background(), "local", log)
	require.NoError(t, err)
	return len(records)
}

func TestRefusedCommandKeepsPendingEntries(t *testing.T) {
	path, _ := setup(t)
	deposit := newTxCmd("deposit", cushion.EmergencyLog, cushion.Deposit, "")
	require.Equal(t, subcommands.ExitSuccess, run(t, deposit, "100", "Bank"))

	db := filepath.Join(t.TempDir(), "store.db")
	t.Setenv("CUSHION_STORE", db)
	t.Setenv("CUSHION_OWNER", "local")
	for range 3 {
		assert.Equal(t, subcommands.ExitFailure, run(t, &repayCmd{}, "nope", "10"))
	}
	assert.Equal(t, 0, remoteCount(t, db, cushion.EmergencyLog))
	assert.True(t, cushion.IsLocalID(load(t, path).Ledger.Emergency()[0].ID))

	// the next successful command sends the pending deposit once.
	require.Equal(t, subcommands.ExitSuccess, run(t, deposit, "50", "Bank"))
	assert.Equal(t, 2, remoteCount(t, db, cushion.EmergencyLog))
	for _, tx := range load(t, path).Ledger.Emergency() {
		assert.False(t, cushion.IsLocalID(tx.ID), tx.ID)
	}

	require.Equal(t, subcommands.ExitSuccess, run(t, deposit, "10", "Bank"))
	assert.Equal(t, 3, remoteCount(t, db, cushion.EmergencyLog))
}

func TestPullRequiresStore(t *testing.T) {
	setup(t)
	assert.Equal(t, subcommands.ExitUsageError, run(t, &pullCmd{}))
}

func TestCompletion(t *testing.T) {
	c := Completion()
	assert.Contains(t, c.Flags, "state")
	assert.Contains(t, c.Flags, "raw")

	for _, name := range []string{"deposit", "invest", "borrow", "open", "status", "stats", "serve", "assist"} {
		assert.Contains(t, c.Sub, name)
	}
	stats := c.Sub["stats"]
	assert.Contains(t, stats.Flags, "w")
	assert.Contains(t, stats.Flags, "ma")
	assert.Equal(t, []string{"cushion", "investment", "debt"}, stats.Args.Predict(""))
	assert.Nil(t, c.Sub["status"].Args)
}
