package cushion

import "errors"

// Refusals returned by the Ledger and the TradeBook. They are always wrapped
// with some context, use errors.Is to test them.
var (
	ErrInvalidAmount   = errors.New("amount must be a finite number greater than zero")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrInvalidSide     = errors.New("invalid trade side")
	ErrMissingName     = errors.New("name is required")
	ErrInsufficient    = errors.New("balance would become negative")
	ErrNotFound        = errors.New("not found")
	ErrUnknownLog      = errors.New("unknown log")
	ErrOverRepay       = errors.New("repayment exceeds the outstanding amount")
	ErrDebtSettled     = errors.New("debt is already settled")
	ErrTradeClosed     = errors.New("trade is closed")
	ErrOverClose       = errors.New("closing quantity exceeds the remaining quantity")
)
