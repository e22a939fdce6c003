package cushion

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/cushion/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) (*Ledger, *TradeBook) {
	t.Helper()
	today, set := fixedClock("2025-03-01")
	l := NewLedger(WithClock(today))
	_, err := l.RecordEmergencyTx(Deposit, dec("1000"), "EUR", "Bank", "first")
	require.NoError(t, err)
	set("2025-03-05")
	_, err = l.RecordEmergencyTx(Withdraw, dec("150.5"), "EUR", "Bank", "")
	require.NoError(t, err)
	_, err = l.RecordInvestTx(In, dec("500"), "EUR", "ETF", "")
	require.NoError(t, err)
	d, err := l.RecordDebt("Card", dec("300"), "EUR")
	require.NoError(t, err)
	_, err = l.RepayDebt(d.ID, dec("100"))
	require.NoError(t, err)

	b := NewTradeBook(WithClock(today))
	tr, err := b.OpenTrade("ACME", Buy, dec("10"), dec("100"), date.Date{}, "breakout")
	require.NoError(t, err)
	_, err = b.ClosePartial(tr.ID, dec("4"), dec("110"))
	require.NoError(t, err)
	return l, b
}

func TestEncodeDecodeState(t *testing.T) {
	l, b := sampleState(t)

	var buf bytes.Buffer
	require.NoError(t, EncodeState(&buf, l, b))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// 2 emergency, 1 invest, 1 debt, 1 trade, 2+1+2 points.
	require.Len(t, lines, 10)
	assert.True(t, strings.HasPrefix(lines[0], `{"log":"emergency","id":"local-`), lines[0])
	assert.Contains(t, lines[0], `"amount":1000,`)
	assert.True(t, strings.HasPrefix(lines[5], `{"log":"point","series":"cushion","date":"2025-03-01","value":1000}`), lines[5])

	s, err := DecodeState(&buf)
	require.NoError(t, err)
	assertDecimal(t, "849.5", s.Ledger.CashReserve())
	assertDecimal(t, "500", s.Ledger.InvestmentBalance())
	assertDecimal(t, "200", s.Ledger.TotalDebt())
	assert.Equal(t, l.Emergency(), s.Ledger.Emergency())
	assert.Equal(t, l.Histories(), s.Ledger.Histories())
	assert.Equal(t, l.Debts()[0].History, s.Ledger.Debts()[0].History)

	trades := s.Trades.Trades()
	require.Len(t, trades, 1)
	assertDecimal(t, "6", trades[0].RemainingQty)
	assertDecimal(t, "40", RealizedPnL(trades[0]))
}

func TestDecodeState_Legacy(t *testing.T) {
	input := `
{"log":"emergency","id":"a","date":"2024-01-01","type":"deposit","amount":"100","currency":"EUR","place":"Bank"}
{"log":"debt","id":"d","name":"Card","amount":999,"currency":"EUR","history":[{"date":"2024-01-01","type":"add","amount":50},{"date":"2024-01-02","type":"repay","amount":20}]}
{"log":"trade","id":"t","symbol":"X","side":"SELL","qty":5,"price":10,"date":"2024-01-01"}
`
	s, err := DecodeState(strings.NewReader(input))
	require.NoError(t, err)
	assertDecimal(t, "100", s.Ledger.CashReserve())
	// the stored amount is recomputed from the history.
	assertDecimal(t, "30", s.Ledger.TotalDebt())
	tr, ok := s.Trades.Trade("t")
	require.True(t, ok)
	assertDecimal(t, "5", tr.RemainingQty)
	assert.NotNil(t, tr.Closures)
	assert.Zero(t, s.Ledger.CushionHistory().Len())

	s.Ledger.Checkpoint()
	assert.Equal(t, 1, s.Ledger.CushionHistory().Len())
}

func TestDecodeState_Errors(t *testing.T) {
	input := "{\"log\":\"savings\"}\nnot json\n{\"log\":\"point\",\"series\":\"gold\",\"date\":\"2024-01-01\",\"value\":1}\n"
	_, err := DecodeState(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLog)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "line 3")
}

func TestDecodeState_InconsistentTrade(t *testing.T) {
	input := `{"log":"trade","id":"ok","symbol":"X","side":"BUY","qty":5,"price":10,"date":"2024-01-01"}
{"log":"trade","id":"bad","symbol":"X","side":"BUY","qty":5,"price":10,"remainingQty":9,"date":"2024-01-01","closures":[]}
`
	_, err := DecodeState(strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "line 2")
	assert.NotContains(t, err.Error(), "line 1")
}

func TestSaveLoadState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "cushion.jsonl")

	empty, err := LoadState(path)
	require.NoError(t, err)
	assert.Empty(t, empty.Ledger.Emergency())
	assert.Empty(t, empty.Trades.Trades())

	l, b := sampleState(t)
	require.NoError(t, SaveState(path, l, b))

	s, err := LoadState(path)
	require.NoError(t, err)
	assert.Equal(t, l.Summary(dec("100")), s.Ledger.Summary(dec("100")))
	assert.Equal(t, b.Trades(), s.Trades.Trades())
}
