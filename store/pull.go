package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/etnz/cushion"
)

// Pull rebuilds the whole state of owner from the store. Entries carry their
// server id, trades are migrated to the current shape while decoding, and the
// balance histories start with a single point holding the pulled balances.
func (s *SQLite) Pull(ctx context.Context, owner string, opts ...cushion.Option) (cushion.State, error) {
	var (
		emergency, invest []cushion.Transaction
		debts             []cushion.DebtRecord
		trades            []cushion.Trade
		errs              []error
	)
	for _, log := range []cushion.Log{cushion.EmergencyLog, cushion.InvestLog, cushion.DebtLog, cushion.TradeLog} {
		records, err := s.Load(ctx, owner, log)
		if err != nil {
			return cushion.State{}, err
		}
		for _, r := range records {
			var err error
			switch log {
			case cushion.EmergencyLog, cushion.InvestLog:
				var tx cushion.Transaction
				if err = json.Unmarshal(r.Fields, &tx); err == nil {
					tx.ID = r.ID
					if log == cushion.EmergencyLog {
						emergency = append(emergency, tx)
					} else {
						invest = append(invest, tx)
					}
				}
			case cushion.DebtLog:
				var d cushion.DebtRecord
				if err = json.Unmarshal(r.Fields, &d); err == nil {
					d.ID = r.ID
					debts = append(debts, d)
				}
			case cushion.TradeLog:
				var t cushion.Trade
				if err = json.Unmarshal(r.Fields, &t); err == nil {
					t.ID = r.ID
					trades = append(trades, t)
				}
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s record %q: %w", log, r.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return cushion.State{}, errors.Join(errs...)
	}

	l := cushion.RestoreLedger(emergency, invest, debts, cushion.Histories{}, opts...)
	l.Checkpoint()
	s.log.Info().Str("owner", owner).
		Int("emergency", len(emergency)).Int("invest", len(invest)).
		Int("debts", len(debts)).Int("trades", len(trades)).
		Msg("Pulled records")
	return cushion.State{Ledger: l, Trades: cushion.RestoreTradeBook(trades, opts...)}, nil
}
