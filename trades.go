package cushion

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/cushion/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a Trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide parses a trade side, case insensitive.
func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case Buy, Sell:
		return side, nil
	default:
		return "", fmt.Errorf("%w: %q, want BUY or SELL", ErrInvalidSide, s)
	}
}

// sign is +1 for BUY and -1 for SELL.
func (s Side) sign() decimal.Decimal {
	if s == Sell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Closure is a partial or full exit of a trade.
type Closure struct {
	ID    string          `json:"id"`
	Date  date.Date       `json:"date"`
	Qty   decimal.Decimal `json:"qty"`
	Price decimal.Decimal `json:"price"`
}

// Trade is a position opened at Price for Qty units of Symbol.
//
// RemainingQty + the sum of closures Qty always equals Qty. A trade whose
// RemainingQty is zero is closed and no longer changes.
type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Qty          decimal.Decimal `json:"qty"`
	Price        decimal.Decimal `json:"price"`
	RemainingQty decimal.Decimal `json:"remainingQty"`
	Date         date.Date       `json:"date"`
	Note         string          `json:"note,omitempty"`
	Closures     []Closure       `json:"closures"`
}

// UnmarshalJSON decodes a trade and migrates older records that predate
// partial closures: a missing closures list is empty, a missing remaining
// quantity is what the closures left open. The decoded quantities must add
// up, see Trade.
func (t *Trade) UnmarshalJSON(data []byte) error {
	type plain Trade
	var aux struct {
		plain
		RemainingQty *decimal.Decimal `json:"remainingQty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Trade(aux.plain)
	if t.Closures == nil {
		t.Closures = []Closure{}
	}
	if aux.RemainingQty != nil {
		t.RemainingQty = *aux.RemainingQty
	} else {
		t.RemainingQty = decimal.Max(decimal.Zero, t.Qty.Sub(t.ClosedQty()))
	}
	return t.check()
}

// check verifies the invariants of a decoded trade.
func (t Trade) check() error {
	if t.Side != Buy && t.Side != Sell {
		return fmt.Errorf("trade %q: %w: %q", t.ID, ErrInvalidSide, t.Side)
	}
	if !t.Qty.IsPositive() || !t.Price.IsPositive() {
		return fmt.Errorf("trade %q: quantity and price: %w", t.ID, ErrInvalidAmount)
	}
	for _, c := range t.Closures {
		if !c.Qty.IsPositive() {
			return fmt.Errorf("trade %q: closure %q quantity: %w", t.ID, c.ID, ErrInvalidAmount)
		}
	}
	if t.RemainingQty.IsNegative() || !t.RemainingQty.Add(t.ClosedQty()).Equal(t.Qty) {
		return fmt.Errorf("trade %q: remaining %s and closed %s do not add up to %s: %w",
			t.ID, t.RemainingQty, t.ClosedQty(), t.Qty, ErrInvalidAmount)
	}
	return nil
}

// Closed reports whether nothing remains open.
func (t Trade) Closed() bool { return !t.RemainingQty.IsPositive() }

// ClosedQty returns the quantity closed so far.
func (t Trade) ClosedQty() decimal.Decimal {
	total := decimal.Zero
	for _, c := range t.Closures {
		total = total.Add(c.Qty)
	}
	return total
}

func (t Trade) clone() Trade {
	t.Closures = slices.Clone(t.Closures)
	if t.Closures == nil {
		t.Closures = []Closure{}
	}
	return t
}

// RealizedPnL returns the profit locked in by the closures of t.
// It is negative for a loss, and flips sign for SELL trades.
func RealizedPnL(t Trade) decimal.Decimal {
	pnl := decimal.Zero
	for _, c := range t.Closures {
		pnl = pnl.Add(c.Price.Sub(t.Price).Mul(c.Qty))
	}
	return pnl.Mul(t.Side.sign())
}

// UnrealizedPnL returns the notional profit of the remaining quantity of t
// at the current price.
func UnrealizedPnL(t Trade, current decimal.Decimal) decimal.Decimal {
	if t.Closed() {
		return decimal.Zero
	}
	return current.Sub(t.Price).Mul(t.RemainingQty).Mul(t.Side.sign())
}

// WinRate returns the fraction of closed trades with a positive realized
// profit. Trades without any closure are ignored. It is 0 without closed
// trades.
func WinRate(trades []Trade) float64 {
	closed, won := 0, 0
	for _, t := range trades {
		if !t.Closed() || len(t.Closures) == 0 {
			continue
		}
		closed++
		if RealizedPnL(t).IsPositive() {
			won++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(won) / float64(closed)
}

// TradeStats summarizes a TradeBook.
type TradeStats struct {
	Open     int             `json:"open"`
	Closed   int             `json:"closed"`
	Realized decimal.Decimal `json:"realized"`
	WinRate  float64         `json:"winRate"`
}

// TradeBook is the trading journal: trades and their closures.
//
// Like the Ledger, it validates before mutating and dispatches a Command for
// every accepted mutation. It expects a single caller.
type TradeBook struct {
	trades []Trade
	settings
}

// NewTradeBook creates an empty trading journal.
func NewTradeBook(opts ...Option) *TradeBook {
	return &TradeBook{settings: newSettings("tradebook", opts)}
}

// RestoreTradeBook creates a journal holding trades. Trades are expected to be
// decoded through Trade.UnmarshalJSON, which normalizes older records.
func RestoreTradeBook(trades []Trade, opts ...Option) *TradeBook {
	b := NewTradeBook(opts...)
	b.trades = make([]Trade, len(trades))
	for i, t := range trades {
		b.trades[i] = t.clone()
	}
	return b
}

// Trades returns a copy of all trades, in opening order.
func (b *TradeBook) Trades() []Trade {
	trades := make([]Trade, len(b.trades))
	for i, t := range b.trades {
		trades[i] = t.clone()
	}
	return trades
}

// Trade returns the trade with that id.
func (b *TradeBook) Trade(id string) (Trade, bool) {
	i := b.index(id)
	if i < 0 {
		return Trade{}, false
	}
	return b.trades[i].clone(), true
}

// OpenTrade opens a new position. A zero date means today.
func (b *TradeBook) OpenTrade(symbol string, side Side, qty, price decimal.Decimal, on date.Date, note string) (Trade, error) {
	symbol = strings.ToUpper(ParseText(symbol))
	if symbol == "" {
		return Trade{}, fmt.Errorf("cannot open trade: symbol: %w", ErrMissingName)
	}
	if side != Buy && side != Sell {
		return Trade{}, fmt.Errorf("cannot open trade on %s: %w: %q", symbol, ErrInvalidSide, side)
	}
	if err := validateAmount(qty); err != nil {
		return Trade{}, fmt.Errorf("cannot open trade on %s: quantity: %w", symbol, err)
	}
	if err := validateAmount(price); err != nil {
		return Trade{}, fmt.Errorf("cannot open trade on %s: price: %w", symbol, err)
	}
	if on.IsZero() {
		on = b.today()
	}
	t := Trade{
		ID:           b.newID(),
		Symbol:       symbol,
		Side:         side,
		Qty:          qty,
		Price:        price,
		RemainingQty: qty,
		Date:         on,
		Note:         ParseText(note),
		Closures:     []Closure{},
	}
	b.trades = append(b.trades, t)
	b.sync.Dispatch(Command{Op: OpInsert, Log: TradeLog, LocalID: t.ID, Fields: fieldsOf(t)})
	b.log.Debug().Str("id", t.ID).Str("symbol", symbol).Str("side", string(side)).Msg("opened trade")
	return t.clone(), nil
}

// ClosePartial closes qty units of trade id at price.
func (b *TradeBook) ClosePartial(id string, qty, price decimal.Decimal) (Closure, error) {
	i := b.index(id)
	if i < 0 {
		return Closure{}, fmt.Errorf("cannot close trade %q: %w", id, ErrNotFound)
	}
	t := b.trades[i]
	if t.Closed() {
		return Closure{}, fmt.Errorf("cannot close trade %q on %s: %w", id, t.Symbol, ErrTradeClosed)
	}
	if err := validateAmount(qty); err != nil {
		return Closure{}, fmt.Errorf("cannot close trade on %s: quantity: %w", t.Symbol, err)
	}
	if err := validateAmount(price); err != nil {
		return Closure{}, fmt.Errorf("cannot close trade on %s: price: %w", t.Symbol, err)
	}
	if qty.GreaterThan(t.RemainingQty) {
		return Closure{}, fmt.Errorf("cannot close %s of %s: %w (remaining %s)", qty, t.Symbol, ErrOverClose, t.RemainingQty)
	}

	c := Closure{ID: uuid.NewString(), Date: b.today(), Qty: qty, Price: price}
	t = t.clone()
	t.Closures = append(t.Closures, c)
	t.RemainingQty = t.RemainingQty.Sub(qty)
	b.trades[i] = t

	fields := fieldsOf(t)
	b.sync.Dispatch(Command{Op: OpUpdate, Log: TradeLog, LocalID: t.ID, Fields: map[string]any{
		"remainingQty": fields["remainingQty"],
		"closures":     fields["closures"],
	}})
	if t.Closed() {
		b.log.Info().Str("symbol", t.Symbol).Str("realized", RealizedPnL(t).String()).Msg("trade closed")
	}
	return c, nil
}

// CloseFull closes the whole remaining quantity of trade id at price.
// On an already closed trade it does nothing and returns a zero Closure.
func (b *TradeBook) CloseFull(id string, price decimal.Decimal) (Closure, error) {
	i := b.index(id)
	if i < 0 {
		return Closure{}, fmt.Errorf("cannot close trade %q: %w", id, ErrNotFound)
	}
	if b.trades[i].Closed() {
		return Closure{}, nil
	}
	return b.ClosePartial(id, b.trades[i].RemainingQty, price)
}

// DeleteTrade removes a trade and its closures.
func (b *TradeBook) DeleteTrade(id string) error {
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("cannot delete trade %q: %w", id, ErrNotFound)
	}
	b.trades = slices.Delete(b.trades, i, i+1)
	b.sync.Dispatch(Command{Op: OpDelete, Log: TradeLog, LocalID: id})
	return nil
}

// ApplyRemap replaces a local trade id with the server one.
func (b *TradeBook) ApplyRemap(r Remap) bool {
	if r.Log != TradeLog {
		return false
	}
	if i := b.index(r.LocalID); i >= 0 {
		b.trades[i].ID = r.ServerID
		return true
	}
	return false
}

// Pending returns an insert Command for every trade still holding a local id.
func (b *TradeBook) Pending() []Command {
	var cmds []Command
	for _, t := range b.trades {
		if IsLocalID(t.ID) {
			cmds = append(cmds, Command{Op: OpInsert, Log: TradeLog, LocalID: t.ID, Fields: fieldsOf(t)})
		}
	}
	return cmds
}

// Stats summarizes the journal.
func (b *TradeBook) Stats() TradeStats {
	s := TradeStats{Realized: decimal.Zero, WinRate: WinRate(b.trades)}
	for _, t := range b.trades {
		if t.Closed() {
			s.Closed++
		} else {
			s.Open++
		}
		s.Realized = s.Realized.Add(RealizedPnL(t))
	}
	return s
}

func (b *TradeBook) index(id string) int {
	return slices.IndexFunc(b.trades, func(t Trade) bool { return t.ID == id })
}
