package cushion

import (
	"encoding/json"
	"testing"

	"github.com/etnz/cushion/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeBook_Scenario(t *testing.T) {
	b := NewTradeBook()
	tr, err := b.OpenTrade("acme", Buy, dec("10"), dec("100"), date.MustParse("2025-02-01"), "")
	require.NoError(t, err)
	assert.Equal(t, "ACME", tr.Symbol)
	assertDecimal(t, "10", tr.RemainingQty)
	assert.Empty(t, tr.Closures)

	_, err = b.ClosePartial(tr.ID, dec("4"), dec("110"))
	require.NoError(t, err)
	tr, _ = b.Trade(tr.ID)
	assertDecimal(t, "6", tr.RemainingQty)
	assertDecimal(t, "40", RealizedPnL(tr))

	_, err = b.CloseFull(tr.ID, dec("90"))
	require.NoError(t, err)
	tr, _ = b.Trade(tr.ID)
	assertDecimal(t, "0", tr.RemainingQty)
	assert.True(t, tr.Closed())
	assertDecimal(t, "-20", RealizedPnL(tr))

	// a closed trade accepts no closure, and a full close is a no-op.
	_, err = b.ClosePartial(tr.ID, dec("1"), dec("90"))
	assert.ErrorIs(t, err, ErrTradeClosed)
	c, err := b.CloseFull(tr.ID, dec("90"))
	require.NoError(t, err)
	assert.Equal(t, Closure{}, c)
	tr, _ = b.Trade(tr.ID)
	assert.Len(t, tr.Closures, 2)
}

func TestTradeBook_Refusals(t *testing.T) {
	b := NewTradeBook()
	_, err := b.OpenTrade("", Buy, dec("1"), dec("1"), date.Date{}, "")
	assert.ErrorIs(t, err, ErrMissingName)
	_, err = b.OpenTrade("X", "HOLD", dec("1"), dec("1"), date.Date{}, "")
	assert.ErrorIs(t, err, ErrInvalidSide)
	_, err = b.OpenTrade("X", Buy, dec("0"), dec("1"), date.Date{}, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.OpenTrade("X", Sell, dec("1"), dec("-1"), date.Date{}, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Empty(t, b.Trades())

	tr, err := b.OpenTrade("X", Buy, dec("5"), dec("10"), date.Date{}, "")
	require.NoError(t, err)
	_, err = b.ClosePartial(tr.ID, dec("6"), dec("10"))
	assert.ErrorIs(t, err, ErrOverClose)
	_, err = b.ClosePartial(tr.ID, dec("0"), dec("10"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.ClosePartial(tr.ID, dec("1"), dec("0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.ClosePartial("nope", dec("1"), dec("1"))
	assert.ErrorIs(t, err, ErrNotFound)

	tr, _ = b.Trade(tr.ID)
	assertDecimal(t, "5", tr.RemainingQty)
	assert.Empty(t, tr.Closures)
}

func TestTradeBook_QuantityConservation(t *testing.T) {
	b := NewTradeBook()
	tr, err := b.OpenTrade("X", Sell, dec("7.5"), dec("20"), date.Date{}, "")
	require.NoError(t, err)
	for _, qty := range []string{"1", "2.5", "5", "3", "1", "0.5"} {
		_, _ = b.ClosePartial(tr.ID, dec(qty), dec("19"))
		got, _ := b.Trade(tr.ID)
		assertDecimal(t, "7.5", got.RemainingQty.Add(got.ClosedQty()))
	}
	got, _ := b.Trade(tr.ID)
	assert.True(t, got.Closed())
	assert.Len(t, got.Closures, 4) // 5 and 0.5 were refused
}

func TestRealizedPnL_Side(t *testing.T) {
	tests := []struct {
		side        Side
		open, close string
		want        string
	}{
		{Buy, "100", "110", "20"},
		{Buy, "100", "90", "-20"},
		{Sell, "100", "90", "20"},
		{Sell, "100", "110", "-20"},
	}
	for _, tt := range tests {
		tr := Trade{Side: tt.side, Qty: dec("2"), Price: dec(tt.open), Closures: []Closure{{Qty: dec("2"), Price: dec(tt.close)}}}
		assertDecimal(t, tt.want, RealizedPnL(tr))
	}
}

func TestUnrealizedPnL(t *testing.T) {
	buy := Trade{Side: Buy, Qty: dec("10"), Price: dec("100"), RemainingQty: dec("6")}
	assertDecimal(t, "60", UnrealizedPnL(buy, dec("110")))
	sell := Trade{Side: Sell, Qty: dec("10"), Price: dec("100"), RemainingQty: dec("6")}
	assertDecimal(t, "-60", UnrealizedPnL(sell, dec("110")))
	closed := Trade{Side: Buy, Qty: dec("10"), Price: dec("100")}
	assertDecimal(t, "0", UnrealizedPnL(closed, dec("110")))
}

func TestWinRate(t *testing.T) {
	win := Trade{Side: Buy, Qty: dec("1"), Price: dec("10"), Closures: []Closure{{Qty: dec("1"), Price: dec("12")}}}
	loss := Trade{Side: Buy, Qty: dec("1"), Price: dec("10"), Closures: []Closure{{Qty: dec("1"), Price: dec("8")}}}
	open := Trade{Side: Buy, Qty: dec("1"), Price: dec("10"), RemainingQty: dec("1")}
	empty := Trade{Side: Buy, Qty: dec("1"), Price: dec("10")}

	assert.Equal(t, 0.0, WinRate(nil))
	assert.Equal(t, 0.0, WinRate([]Trade{open, empty}))
	assert.Equal(t, 0.5, WinRate([]Trade{win, loss, open, empty}))
	assert.Equal(t, 1.0, WinRate([]Trade{win}))
}

func TestTradeBook_StatsAndDelete(t *testing.T) {
	rec := new(recorder)
	b := NewTradeBook(WithDispatcher(rec))
	a, _ := b.OpenTrade("A", Buy, dec("1"), dec("10"), date.Date{}, "")
	c, _ := b.OpenTrade("B", Buy, dec("1"), dec("10"), date.Date{}, "")
	_, err := b.CloseFull(a.ID, dec("15"))
	require.NoError(t, err)

	s := b.Stats()
	assert.Equal(t, 1, s.Open)
	assert.Equal(t, 1, s.Closed)
	assertDecimal(t, "5", s.Realized)
	assert.Equal(t, 1.0, s.WinRate)

	require.NoError(t, b.DeleteTrade(c.ID))
	assert.ErrorIs(t, b.DeleteTrade(c.ID), ErrNotFound)
	assert.Len(t, b.Trades(), 1)

	cmds := rec.commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, []Op{OpInsert, OpInsert, OpUpdate, OpDelete}, []Op{cmds[0].Op, cmds[1].Op, cmds[2].Op, cmds[3].Op})
	assert.Contains(t, cmds[2].Fields, "closures")
	assert.Equal(t, TradeLog, cmds[3].Log)

	assert.True(t, b.ApplyRemap(Remap{Log: TradeLog, LocalID: a.ID, ServerID: "srv"}))
	assert.False(t, b.ApplyRemap(Remap{Log: DebtLog, LocalID: "srv", ServerID: "x"}))
	assert.Empty(t, b.Pending())
}

func TestTrade_Migration(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		remaining string
		closures  int
	}{
		{"current shape", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"remainingQty":4,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":6,"price":6}]}`, "4", 1},
		{"no remaining, no closures", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"date":"2024-01-01"}`, "10", 0},
		{"no remaining", `{"id":"1","symbol":"A","side":"SELL","qty":10,"price":5,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":3,"price":6}]}`, "7", 1},
		{"null closures", `{"id":"1","symbol":"A","side":"BUY","qty":"2","price":"5","date":"2024-01-01","closures":null}`, "2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Trade
			require.NoError(t, json.Unmarshal([]byte(tt.json), &tr))
			assertDecimal(t, tt.remaining, tr.RemainingQty)
			require.NotNil(t, tr.Closures)
			assert.Len(t, tr.Closures, tt.closures)
			assert.Equal(t, date.MustParse("2024-01-01"), tr.Date)
		})
	}
}

func TestTrade_UnmarshalRefusesInconsistent(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"remaining above qty", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"remainingQty":12,"date":"2024-01-01","closures":[]}`, ErrInvalidAmount},
		{"negative remaining", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"remainingQty":-2,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":12,"price":6}]}`, ErrInvalidAmount},
		{"closures do not add up", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"remainingQty":8,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":6,"price":6}]}`, ErrInvalidAmount},
		{"legacy over-closed", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":12,"price":6}]}`, ErrInvalidAmount},
		{"zero closure", `{"id":"1","symbol":"A","side":"BUY","qty":10,"price":5,"remainingQty":10,"date":"2024-01-01","closures":[{"id":"c","date":"2024-02-01","qty":0,"price":6}]}`, ErrInvalidAmount},
		{"zero qty", `{"id":"1","symbol":"A","side":"BUY","qty":0,"price":5,"date":"2024-01-01"}`, ErrInvalidAmount},
		{"unknown side", `{"id":"1","symbol":"A","side":"LONG","qty":10,"price":5,"date":"2024-01-01"}`, ErrInvalidSide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Trade
			assert.ErrorIs(t, json.Unmarshal([]byte(tt.json), &tr), tt.want)
		})
	}
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" sell ")
	require.NoError(t, err)
	assert.Equal(t, Sell, s)
	_, err = ParseSide("long")
	assert.ErrorIs(t, err, ErrInvalidSide)
}
