// Package cushion is the calculation core of a personal-finance journal. It
// keeps an emergency fund, an investment account, debts and a trading
// journal as append-only logs, and derives every number shown to the user
// from them.
//
// The core functionalities include:
//   - Ledger: records emergency fund and investment transactions and debts,
//     keeps balances reconciled with the logs and appends every new balance
//     to a history series.
//   - TradeBook: opens trades, closes them in several steps and computes
//     realized and unrealized profits.
//   - Charts and statistics: aligns the balance histories on common dates
//     within a time window, and computes volatility, drawdown, VaR and the
//     like over any series.
//   - Projections: compound growth and debt payoff time.
//   - Persistence: a human-readable JSONL state file, and a Syncer replicating
//     every mutation to a remote Store in the background.
//
// The Ledger and the TradeBook validate every input before mutating
// anything: a refused operation returns a wrapped sentinel error and leaves
// the state untouched.
package cushion
