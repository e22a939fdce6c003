package cushion

import (
	"fmt"
	"slices"

	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
)

// Ledger owns the three append-only logs (emergency fund, investment, debt)
// and the balances derived from them.
//
// Every mutation validates its input first, so a refused operation leaves the
// ledger untouched. Every accepted mutation recomputes the affected balance
// from the full log and appends a point to the matching history series.
//
// A Ledger is not safe for concurrent use: it expects a single caller.
type Ledger struct {
	emergency []Transaction
	invest    []Transaction
	debts     []DebtRecord

	cashReserve       decimal.Decimal
	investmentBalance decimal.Decimal
	totalDebt         decimal.Decimal

	cushion    date.Series
	investment date.Series
	debt       date.Series

	settings
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	return &Ledger{settings: newSettings("ledger", opts)}
}

// Histories groups the three balance history series.
type Histories struct {
	Cushion    date.Series
	Investment date.Series
	Debt       date.Series
}

// RestoreLedger rebuilds a ledger from previously persisted logs and
// histories. Balances and debt outstanding amounts are recomputed from the
// logs; no history point is appended.
func RestoreLedger(emergency, invest []Transaction, debts []DebtRecord, h Histories, opts ...Option) *Ledger {
	l := NewLedger(opts...)
	l.emergency = slices.Clone(emergency)
	l.invest = slices.Clone(invest)
	l.debts = make([]DebtRecord, len(debts))
	for i, d := range debts {
		d = d.clone()
		d.Amount = d.outstanding()
		l.debts[i] = d
	}
	l.cushion, l.investment, l.debt = h.Cushion, h.Investment, h.Debt
	l.cashReserve = balanceOf(l.emergency)
	l.investmentBalance = balanceOf(l.invest)
	l.totalDebt = totalDebtOf(l.debts)
	return l
}

// Checkpoint appends the current balances to the three history series.
// It is used after a restore, so that history reflects the restored state.
func (l *Ledger) Checkpoint() {
	on := l.today()
	l.cushion.Append(on, l.cashReserve.InexactFloat64())
	l.investment.Append(on, l.investmentBalance.InexactFloat64())
	l.debt.Append(on, l.totalDebt.InexactFloat64())
}

// CashReserve returns the emergency fund balance.
func (l *Ledger) CashReserve() decimal.Decimal { return l.cashReserve }

// InvestmentBalance returns the investment balance.
func (l *Ledger) InvestmentBalance() decimal.Decimal { return l.investmentBalance }

// TotalDebt returns the sum of outstanding amounts of unsettled debts.
func (l *Ledger) TotalDebt() decimal.Decimal { return l.totalDebt }

// Emergency returns a copy of the emergency fund log.
func (l *Ledger) Emergency() []Transaction { return slices.Clone(l.emergency) }

// Invest returns a copy of the investment log.
func (l *Ledger) Invest() []Transaction { return slices.Clone(l.invest) }

// Transactions returns a copy of the emergency or investment log.
func (l *Ledger) Transactions(log Log) ([]Transaction, error) {
	switch log {
	case EmergencyLog:
		return l.Emergency(), nil
	case InvestLog:
		return l.Invest(), nil
	default:
		return nil, fmt.Errorf("%w: %q has no transactions", ErrUnknownLog, log)
	}
}

// Debts returns a copy of all debt records, settled ones included.
func (l *Ledger) Debts() []DebtRecord {
	debts := make([]DebtRecord, len(l.debts))
	for i, d := range l.debts {
		debts[i] = d.clone()
	}
	return debts
}

// Debt returns the debt with that id.
func (l *Ledger) Debt(id string) (DebtRecord, bool) {
	i := l.debtIndex(id)
	if i < 0 {
		return DebtRecord{}, false
	}
	return l.debts[i].clone(), true
}

// CushionHistory returns the emergency fund balance history.
func (l *Ledger) CushionHistory() date.Series { return date.NewSeries(l.cushion.Points()...) }

// InvestmentHistory returns the investment balance history.
func (l *Ledger) InvestmentHistory() date.Series { return date.NewSeries(l.investment.Points()...) }

// DebtHistory returns the total debt history.
func (l *Ledger) DebtHistory() date.Series { return date.NewSeries(l.debt.Points()...) }

// Histories returns the three balance history series.
func (l *Ledger) Histories() Histories {
	return Histories{Cushion: l.CushionHistory(), Investment: l.InvestmentHistory(), Debt: l.DebtHistory()}
}

// RecordEmergencyTx records a deposit or a withdraw into the emergency fund.
func (l *Ledger) RecordEmergencyTx(typ TxType, amount decimal.Decimal, currency, place, note string) (Transaction, error) {
	tx, err := l.record(EmergencyLog, typ, amount, currency, place, note)
	if err != nil {
		return Transaction{}, fmt.Errorf("cannot record emergency %s: %w", typ, err)
	}
	return tx, nil
}

// RecordInvestTx records money moved in or out of investments.
func (l *Ledger) RecordInvestTx(typ TxType, amount decimal.Decimal, currency, destination, note string) (Transaction, error) {
	tx, err := l.record(InvestLog, typ, amount, currency, destination, note)
	if err != nil {
		return Transaction{}, fmt.Errorf("cannot record investment %s: %w", typ, err)
	}
	return tx, nil
}

func (l *Ledger) record(log Log, typ TxType, amount decimal.Decimal, currency, place, note string) (Transaction, error) {
	if !typ.validFor(log) {
		return Transaction{}, fmt.Errorf("%w: %q in the %s log", ErrInvalidType, typ, log)
	}
	if err := validateAmount(amount); err != nil {
		return Transaction{}, err
	}
	if err := ValidateCurrency(currency); err != nil {
		return Transaction{}, err
	}
	tx := Transaction{
		ID:       l.newID(),
		Date:     l.today(),
		Type:     typ,
		Amount:   amount,
		Currency: currency,
		Place:    ParseText(place),
		Note:     ParseText(note),
	}

	txs := l.txLog(log)
	if after := balanceOf(*txs).Add(tx.Signed()); after.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: %s balance would be %s", ErrInsufficient, log, after)
	}
	*txs = append(*txs, tx)
	l.recompute(log)
	l.sync.Dispatch(Command{Op: OpInsert, Log: log, LocalID: tx.ID, Fields: fieldsOf(tx)})
	l.log.Debug().Str("log", string(log)).Str("id", tx.ID).Str("type", string(typ)).Str("amount", amount.String()).Msg("recorded transaction")
	return tx, nil
}

// RecordDebt creates a new debt with a single add event.
func (l *Ledger) RecordDebt(name string, amount decimal.Decimal, currency string) (DebtRecord, error) {
	name = ParseText(name)
	if name == "" {
		return DebtRecord{}, fmt.Errorf("cannot record debt: %w", ErrMissingName)
	}
	if err := validateAmount(amount); err != nil {
		return DebtRecord{}, fmt.Errorf("cannot record debt %q: %w", name, err)
	}
	if err := ValidateCurrency(currency); err != nil {
		return DebtRecord{}, fmt.Errorf("cannot record debt %q: %w", name, err)
	}
	d := DebtRecord{
		ID:       l.newID(),
		Name:     name,
		Currency: currency,
		History:  []DebtEvent{{Date: l.today(), Type: DebtAdd, Amount: amount}},
	}
	d.Amount = d.outstanding()
	l.debts = append(l.debts, d)
	l.recompute(DebtLog)
	l.sync.Dispatch(Command{Op: OpInsert, Log: DebtLog, LocalID: d.ID, Fields: fieldsOf(d)})
	return d.clone(), nil
}

// IncreaseDebt adds amount to an existing, unsettled debt.
func (l *Ledger) IncreaseDebt(id string, amount decimal.Decimal) (DebtRecord, error) {
	return l.debtEvent(id, DebtAdd, amount)
}

// RepayDebt records a repayment. A repayment larger than the outstanding
// amount is refused with ErrOverRepay and the debt is left unchanged.
// Reaching zero settles the debt.
func (l *Ledger) RepayDebt(id string, amount decimal.Decimal) (DebtRecord, error) {
	return l.debtEvent(id, DebtRepay, amount)
}

// CloseDebt settles the whole outstanding amount of a debt at once.
func (l *Ledger) CloseDebt(id string) (DebtRecord, error) {
	i := l.debtIndex(id)
	if i < 0 {
		return DebtRecord{}, fmt.Errorf("cannot close debt %q: %w", id, ErrNotFound)
	}
	return l.debtEvent(id, DebtClose, l.debts[i].Amount)
}

func (l *Ledger) debtEvent(id string, typ DebtEventType, amount decimal.Decimal) (DebtRecord, error) {
	i := l.debtIndex(id)
	if i < 0 {
		return DebtRecord{}, fmt.Errorf("cannot %s debt %q: %w", typ, id, ErrNotFound)
	}
	d := l.debts[i]
	if d.Settled() {
		return DebtRecord{}, fmt.Errorf("cannot %s debt %q: %w", typ, d.Name, ErrDebtSettled)
	}
	if err := validateAmount(amount); err != nil {
		return DebtRecord{}, fmt.Errorf("cannot %s debt %q: %w", typ, d.Name, err)
	}
	if typ != DebtAdd && amount.GreaterThan(d.Amount) {
		return DebtRecord{}, fmt.Errorf("cannot %s %s on debt %q: %w (outstanding %s)", typ, amount, d.Name, ErrOverRepay, d.Amount)
	}

	d = d.clone()
	d.History = append(d.History, DebtEvent{Date: l.today(), Type: typ, Amount: amount})
	d.Amount = d.outstanding()
	l.debts[i] = d
	l.recompute(DebtLog)
	l.sync.Dispatch(Command{Op: OpUpdate, Log: DebtLog, LocalID: d.ID, Fields: map[string]any{
		"amount":  fieldsOf(d)["amount"],
		"history": fieldsOf(d)["history"],
	}})
	if d.Settled() {
		l.log.Info().Str("debt", d.Name).Msg("debt settled")
	}
	return d.clone(), nil
}

// DeleteTransaction removes an entry from the emergency, investment or debt
// log, then recomputes the balance from the remaining log and appends a
// correcting history point. Past history points are never edited.
func (l *Ledger) DeleteTransaction(log Log, id string) error {
	switch log {
	case EmergencyLog, InvestLog:
		txs := l.txLog(log)
		i := slices.IndexFunc(*txs, func(tx Transaction) bool { return tx.ID == id })
		if i < 0 {
			return fmt.Errorf("cannot delete %q from the %s log: %w", id, log, ErrNotFound)
		}
		remaining := slices.Delete(slices.Clone(*txs), i, i+1)
		if after := balanceOf(remaining); after.IsNegative() {
			return fmt.Errorf("cannot delete %q from the %s log: %w: balance would be %s", id, log, ErrInsufficient, after)
		}
		*txs = remaining
	case DebtLog:
		i := l.debtIndex(id)
		if i < 0 {
			return fmt.Errorf("cannot delete %q from the debt log: %w", id, ErrNotFound)
		}
		l.debts = slices.Delete(l.debts, i, i+1)
	default:
		return fmt.Errorf("cannot delete %q: %w: %q", id, ErrUnknownLog, log)
	}
	l.recompute(log)
	l.sync.Dispatch(Command{Op: OpDelete, Log: log, LocalID: id})
	l.log.Debug().Str("log", string(log)).Str("id", id).Msg("deleted entry")
	return nil
}

// ApplyRemap replaces a local identifier with the one assigned by the remote
// store. It returns false when no entry holds that local identifier.
func (l *Ledger) ApplyRemap(r Remap) bool {
	switch r.Log {
	case EmergencyLog, InvestLog:
		txs := *l.txLog(r.Log)
		for i := range txs {
			if txs[i].ID == r.LocalID {
				txs[i].ID = r.ServerID
				return true
			}
		}
	case DebtLog:
		if i := l.debtIndex(r.LocalID); i >= 0 {
			l.debts[i].ID = r.ServerID
			return true
		}
	}
	return false
}

// Pending returns an insert Command for every entry still holding a local
// identifier.
func (l *Ledger) Pending() []Command {
	var cmds []Command
	for _, log := range []Log{EmergencyLog, InvestLog} {
		for _, tx := range *l.txLog(log) {
			if IsLocalID(tx.ID) {
				cmds = append(cmds, Command{Op: OpInsert, Log: log, LocalID: tx.ID, Fields: fieldsOf(tx)})
			}
		}
	}
	for _, d := range l.debts {
		if IsLocalID(d.ID) {
			cmds = append(cmds, Command{Op: OpInsert, Log: DebtLog, LocalID: d.ID, Fields: fieldsOf(d)})
		}
	}
	return cmds
}

// recompute derives the balance of log from scratch and appends it to the
// matching history.
func (l *Ledger) recompute(log Log) {
	on := l.today()
	switch log {
	case EmergencyLog:
		l.cashReserve = balanceOf(l.emergency)
		l.cushion.Append(on, l.cashReserve.InexactFloat64())
	case InvestLog:
		l.investmentBalance = balanceOf(l.invest)
		l.investment.Append(on, l.investmentBalance.InexactFloat64())
	case DebtLog:
		l.totalDebt = totalDebtOf(l.debts)
		l.debt.Append(on, l.totalDebt.InexactFloat64())
	}
}

func (l *Ledger) txLog(log Log) *[]Transaction {
	if log == InvestLog {
		return &l.invest
	}
	return &l.emergency
}

func (l *Ledger) debtIndex(id string) int {
	return slices.IndexFunc(l.debts, func(d DebtRecord) bool { return d.ID == id })
}

// Summary is a snapshot of the derived numbers.
type Summary struct {
	CashReserve       decimal.Decimal `json:"cashReserve"`
	InvestmentBalance decimal.Decimal `json:"investmentBalance"`
	TotalDebt         decimal.Decimal `json:"totalDebt"`
	NetWorth          decimal.Decimal `json:"netWorth"`
	MonthlyExpenses   decimal.Decimal `json:"monthlyExpenses"`
	EmergencyMonths   float64         `json:"emergencyMonths"`
	OpenDebts         int             `json:"openDebts"`
	SettledDebts      int             `json:"settledDebts"`
}

// Summary returns the current balances, the runway for monthlyExpenses and
// the net worth.
func (l *Ledger) Summary(monthlyExpenses decimal.Decimal) Summary {
	s := Summary{
		CashReserve:       l.cashReserve,
		InvestmentBalance: l.investmentBalance,
		TotalDebt:         l.totalDebt,
		NetWorth:          NetWorth(l.cashReserve, l.investmentBalance, l.totalDebt),
		MonthlyExpenses:   monthlyExpenses,
		EmergencyMonths:   EmergencyMonths(l.cashReserve, monthlyExpenses),
	}
	for _, d := range l.debts {
		if d.Settled() {
			s.SettledDebts++
		} else {
			s.OpenDebts++
		}
	}
	return s
}

// Chart builds the balance chart over window, ending today.
func (l *Ledger) Chart(window date.Window, hidden ...SeriesName) Chart {
	return BuildSeries(l.cushion, l.investment, l.debt, window, l.today(), hidden...)
}

// EmergencyMonths returns how many months the cash reserve covers, rounded to
// one decimal. It is 0 when monthlyExpenses is not positive.
func EmergencyMonths(cashReserve, monthlyExpenses decimal.Decimal) float64 {
	if !monthlyExpenses.IsPositive() {
		return 0
	}
	return cashReserve.DivRound(monthlyExpenses, 8).Round(1).InexactFloat64()
}

// NetWorth returns cashReserve + investmentBalance - totalDebt.
func NetWorth(cashReserve, investmentBalance, totalDebt decimal.Decimal) decimal.Decimal {
	return cashReserve.Add(investmentBalance).Sub(totalDebt)
}
