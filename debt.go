package cushion

import (
	"slices"

	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
)

// DebtEventType is the type of a DebtEvent.
type DebtEventType string

const (
	DebtAdd   DebtEventType = "add"
	DebtRepay DebtEventType = "repay"
	DebtClose DebtEventType = "close" // settles the whole outstanding amount
)

// DebtEvent is one entry of a debt history.
type DebtEvent struct {
	Date   date.Date       `json:"date"`
	Type   DebtEventType   `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// DebtRecord is a named debt and its history.
//
// Amount is derived from History: the sum of add events minus the sum of
// repay and close events, never below zero. It is not independently settable.
type DebtRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	History  []DebtEvent     `json:"history"`
}

// outstanding computes the outstanding amount from the history.
func (d DebtRecord) outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, e := range d.History {
		switch e.Type {
		case DebtAdd:
			total = total.Add(e.Amount)
		case DebtRepay, DebtClose:
			total = total.Sub(e.Amount)
		}
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Settled reports whether the debt has been fully repaid.
// A settled debt is kept for audit but no longer counts in the total debt.
func (d DebtRecord) Settled() bool { return len(d.History) > 0 && !d.Amount.IsPositive() }

// Money returns the outstanding amount with its currency.
func (d DebtRecord) Money() Money { return M(d.Amount, d.Currency) }

// Repaid returns the sum of all repay and close events.
func (d DebtRecord) Repaid() decimal.Decimal {
	total := decimal.Zero
	for _, e := range d.History {
		if e.Type == DebtRepay || e.Type == DebtClose {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (d DebtRecord) clone() DebtRecord {
	d.History = slices.Clone(d.History)
	return d
}

// totalDebtOf sums the outstanding amount of unsettled debts.
func totalDebtOf(debts []DebtRecord) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		if !d.Settled() {
			total = total.Add(d.Amount)
		}
	}
	return total
}
