package cushion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// The state file is a JSONL file, human-readable and git-friendly. Every line
// is one record, its "log" field tells what it is:
//
//	{"log":"emergency","id":"…","date":"2025-01-02","type":"deposit","amount":1000,"currency":"EUR","place":"Bank"}
//	{"log":"debt","id":"…","name":"Card","amount":900,"currency":"EUR","history":[…]}
//	{"log":"trade","id":"…","symbol":"AAPL","side":"BUY",…,"closures":[]}
//	{"log":"point","series":"cushion","date":"2025-01-02","value":1000}
//
// Balances are never stored: they are recomputed from the logs on decode.

// pointLog is the discriminator of history points, which are not a Log of
// their own.
const pointLog = "point"

// State is the whole content of a state file.
type State struct {
	Ledger *Ledger
	Trades *TradeBook
}

// EncodeState writes the ledger and the trades to w in JSONL format: logs
// first, in their order, then history points in insertion order.
func EncodeState(w io.Writer, l *Ledger, b *TradeBook) error {
	enc := json.NewEncoder(w)
	write := func(log string, v any) error {
		rec := new(recordWriter).Field("log", log).Merge(v)
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("cannot write %s record: %w", log, err)
		}
		return nil
	}

	for _, tx := range l.emergency {
		if err := write(string(EmergencyLog), tx); err != nil {
			return err
		}
	}
	for _, tx := range l.invest {
		if err := write(string(InvestLog), tx); err != nil {
			return err
		}
	}
	for _, d := range l.debts {
		if err := write(string(DebtLog), d); err != nil {
			return err
		}
	}
	if b != nil {
		for _, t := range b.trades {
			if err := write(string(TradeLog), t); err != nil {
				return err
			}
		}
	}

	type jpoint struct {
		Series SeriesName `json:"series"`
		date.Point
	}
	for _, h := range []struct {
		name   SeriesName
		series date.Series
	}{
		{CushionSeries, l.cushion},
		{InvestmentSeries, l.investment},
		{DebtSeries, l.debt},
	} {
		for _, p := range h.series.Points() {
			if err := write(pointLog, jpoint{Series: h.name, Point: p}); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeState reads a state file. Every line is decoded, and all errors are
// reported together with their line number. Legacy trades are normalized
// while decoding.
func DecodeState(r io.Reader, opts ...Option) (State, error) {
	var (
		emergency, invest []Transaction
		debts             []DebtRecord
		trades            []Trade
		h                 Histories
		errs              []error
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var id struct {
			Log string `json:"log"`
		}
		if err := json.Unmarshal(line, &id); err != nil {
			errs = append(errs, fmt.Errorf("line %d: not a json object: %w", n, err))
			continue
		}

		var err error
		switch id.Log {
		case string(EmergencyLog), string(InvestLog):
			var tx Transaction
			if err = json.Unmarshal(line, &tx); err == nil {
				if id.Log == string(EmergencyLog) {
					emergency = append(emergency, tx)
				} else {
					invest = append(invest, tx)
				}
			}
		case string(DebtLog):
			var d DebtRecord
			if err = json.Unmarshal(line, &d); err == nil {
				debts = append(debts, d)
			}
		case string(TradeLog):
			var t Trade
			if err = json.Unmarshal(line, &t); err == nil {
				trades = append(trades, t)
			}
		case pointLog:
			var p struct {
				Series SeriesName `json:"series"`
				date.Point
			}
			if err = json.Unmarshal(line, &p); err != nil {
				break
			}
			switch p.Series {
			case CushionSeries:
				h.Cushion.Append(p.Date, p.Value)
			case InvestmentSeries:
				h.Investment.Append(p.Date, p.Value)
			case DebtSeries:
				h.Debt.Append(p.Date, p.Value)
			default:
				err = fmt.Errorf("unknown series %q", p.Series)
			}
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownLog, id.Log)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n, err))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("error reading from input: %w", err))
	}
	if len(errs) > 0 {
		return State{}, errors.Join(errs...)
	}

	return State{
		Ledger: RestoreLedger(emergency, invest, debts, h, opts...),
		Trades: RestoreTradeBook(trades, opts...),
	}, nil
}

// LoadState reads the state file at path. A missing file is an empty state.
func LoadState(path string, opts ...Option) (State, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{Ledger: NewLedger(opts...), Trades: NewTradeBook(opts...)}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("could not open state file %q: %w", path, err)
	}
	defer f.Close()

	s, err := DecodeState(f, opts...)
	if err != nil {
		return State{}, fmt.Errorf("could not decode state file %q: %w", path, err)
	}
	return s, nil
}

// SaveState writes the state file at path. The file is replaced at once, so a
// failed write never leaves a truncated file behind.
func SaveState(path string, l *Ledger, b *TradeBook) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".cushion-*.jsonl")
	if err != nil {
		return fmt.Errorf("could not create state file in %q: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := EncodeState(w, l, b); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not save state file %q: %w", path, err)
	}
	return nil
}
