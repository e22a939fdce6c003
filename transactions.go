package cushion

import (
	"fmt"
	"strings"

	"github.com/etnz/cushion/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Log names one of the append-only logs. It is also the entity name used by
// the persistence port.
type Log string

const (
	EmergencyLog Log = "emergency"
	InvestLog    Log = "invest"
	DebtLog      Log = "debt"
	TradeLog     Log = "trade"
)

// ParseLog parses a log name.
func ParseLog(s string) (Log, error) {
	switch l := Log(strings.ToLower(strings.TrimSpace(s))); l {
	case EmergencyLog, InvestLog, DebtLog, TradeLog:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLog, s)
	}
}

// TxType is the type of a Transaction.
type TxType string

const (
	Deposit  TxType = "deposit"  // emergency fund in
	Withdraw TxType = "withdraw" // emergency fund out
	In       TxType = "in"       // investment in
	Out      TxType = "out"      // investment out
)

// sign returns +1 for money flowing into the log, -1 otherwise.
func (t TxType) sign() int64 {
	if t == Withdraw || t == Out {
		return -1
	}
	return 1
}

// validFor reports whether t is a type of the given log.
func (t TxType) validFor(log Log) bool {
	switch log {
	case EmergencyLog:
		return t == Deposit || t == Withdraw
	case InvestLog:
		return t == In || t == Out
	}
	return false
}

// Transaction is one entry of the emergency fund or the investment log.
// Transactions are never mutated, only appended or deleted.
type Transaction struct {
	ID       string          `json:"id"`
	Date     date.Date       `json:"date"`
	Type     TxType          `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Place    string          `json:"place"` // location, destination or name
	Note     string          `json:"note,omitempty"`
}

// Money returns the transaction amount with its currency.
func (t Transaction) Money() Money { return M(t.Amount, t.Currency) }

// Signed returns the amount with the sign of its effect on the balance.
func (t Transaction) Signed() decimal.Decimal { return t.Amount.Mul(decimal.NewFromInt(t.Type.sign())) }

// balanceOf sums the signed amounts of txs.
func balanceOf(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}

// localIDPrefix marks identifiers assigned locally, before the remote store
// returned its own.
const localIDPrefix = "local-"

func newLocalID() string { return localIDPrefix + uuid.NewString() }

// IsLocalID reports whether id was assigned locally and is still waiting for
// a server identifier.
func IsLocalID(id string) bool { return strings.HasPrefix(id, localIDPrefix) }

// validateAmount refuses amounts that are not strictly positive.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}
