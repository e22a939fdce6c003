package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// refusals are the core refusals, reported as 422.
var refusals = []error{
	cushion.ErrInvalidAmount,
	cushion.ErrInvalidType,
	cushion.ErrInvalidCurrency,
	cushion.ErrInvalidSide,
	cushion.ErrMissingName,
	cushion.ErrInsufficient,
	cushion.ErrOverRepay,
	cushion.ErrDebtSettled,
	cushion.ErrTradeClosed,
	cushion.ErrOverClose,
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, cushion.ErrNotFound), errors.Is(err, cushion.ErrUnknownLog):
		return http.StatusNotFound
	}
	for _, r := range refusals {
		if errors.Is(err, r) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %v", errBadRequest, err)
	}
	return nil
}

// mutate runs fn under the lock, saves on success and writes its result.
func (s *Server) mutate(w http.ResponseWriter, status int, fn func() (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := fn()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.save(); err != nil {
		s.log.Error().Err(err).Msg("Failed to save state")
	}
	if v == nil {
		w.WriteHeader(status)
		return
	}
	s.writeJSON(w, status, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type summaryResponse struct {
	cushion.Summary
	Currency string             `json:"currency"`
	Trades   cushion.TradeStats `json:"trades"`
}

// GET /summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, summaryResponse{
		Summary:  s.ledger.Summary(s.cfg.MonthlyExpenses),
		Currency: s.cfg.Currency,
		Trades:   s.trades.Stats(),
	})
}

// parseHidden parses a comma separated list of series names.
func parseHidden(v string) ([]cushion.SeriesName, error) {
	var hidden []cushion.SeriesName
	for _, name := range strings.Split(v, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		n, err := cushion.ParseSeriesName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		hidden = append(hidden, n)
	}
	return hidden, nil
}

func parseWindow(r *http.Request) (date.Window, error) {
	w, err := date.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		return w, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return w, nil
}

// GET /chart?window=3M&hide=debt
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	hidden, err := parseHidden(r.URL.Query().Get("hide"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, s.ledger.Chart(window, hidden...))
}

type statsResponse struct {
	Series cushion.SeriesName `json:"series"`
	Window date.Window        `json:"window"`
	cushion.Description
	MovingAverage []float64 `json:"movingAverage,omitempty"`
}

// GET /stats/{series}?window=1Y&ma=3&rf=0
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	name, err := cushion.ParseSeriesName(chi.URLParam(r, "series"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	ma, err := queryInt(q.Get("ma"), 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	riskFree, err := queryFloat(q, "rf", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var h date.Series
	switch name {
	case cushion.CushionSeries:
		h = s.ledger.CushionHistory()
	case cushion.InvestmentSeries:
		h = s.ledger.InvestmentHistory()
	case cushion.DebtSeries:
		h = s.ledger.DebtHistory()
	}
	values := window.Filter(s.cfg.Today(), h).Values()
	resp := statsResponse{Series: name, Window: window, Description: cushion.Describe(values, riskFree)}
	if ma > 0 {
		resp.MovingAverage = cushion.MovingAverage(values, ma)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type txRequest struct {
	Type     cushion.TxType `json:"type"`
	Amount   string         `json:"amount"`
	Currency string         `json:"currency"`
	Place    string         `json:"place"`
	Note     string         `json:"note"`
}

// POST /emergency and POST /invest
func (s *Server) handleRecord(log cushion.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req txRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		amount, err := cushion.ParseAmount(req.Amount)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if req.Currency == "" {
			req.Currency = s.cfg.Currency
		}
		s.mutate(w, http.StatusCreated, func() (any, error) {
			if log == cushion.InvestLog {
				return s.ledger.RecordInvestTx(req.Type, amount, req.Currency, req.Place, req.Note)
			}
			return s.ledger.RecordEmergencyTx(req.Type, amount, req.Currency, req.Place, req.Note)
		})
	}
}

type logResponse struct {
	Log          cushion.Log           `json:"log"`
	Transactions []cushion.Transaction `json:"transactions"`
	Balance      decimal.Decimal       `json:"balance"`
}

// GET /logs/{log}
func (s *Server) handleListLog(w http.ResponseWriter, r *http.Request) {
	log, err := cushion.ParseLog(chi.URLParam(r, "log"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	txs, err := s.ledger.Transactions(log)
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance := s.ledger.CashReserve()
	if log == cushion.InvestLog {
		balance = s.ledger.InvestmentBalance()
	}
	s.writeJSON(w, http.StatusOK, logResponse{Log: log, Transactions: txs, Balance: balance})
}

// DELETE /logs/{log}/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	log, err := cushion.ParseLog(chi.URLParam(r, "log"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	s.mutate(w, http.StatusNoContent, func() (any, error) {
		if log == cushion.TradeLog {
			return nil, s.trades.DeleteTrade(id)
		}
		return nil, s.ledger.DeleteTransaction(log, id)
	})
}

type debtsResponse struct {
	Debts []cushion.DebtRecord `json:"debts"`
	Total decimal.Decimal      `json:"total"`
}

// GET /debts
func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, debtsResponse{Debts: s.ledger.Debts(), Total: s.ledger.TotalDebt()})
}

type debtRequest struct {
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// POST /debts
func (s *Server) handleRecordDebt(w http.ResponseWriter, r *http.Request) {
	var req debtRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := cushion.ParseAmount(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Currency == "" {
		req.Currency = s.cfg.Currency
	}
	s.mutate(w, http.StatusCreated, func() (any, error) {
		return s.ledger.RecordDebt(req.Name, amount, req.Currency)
	})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// POST /debts/{id}/increase, /repay and /close
func (s *Server) handleDebtEvent(typ cushion.DebtEventType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var amount decimal.Decimal
		if typ != cushion.DebtClose {
			var req amountRequest
			if err := decodeBody(r, &req); err != nil {
				s.writeError(w, err)
				return
			}
			var err error
			if amount, err = cushion.ParseAmount(req.Amount); err != nil {
				s.writeError(w, err)
				return
			}
		}
		s.mutate(w, http.StatusOK, func() (any, error) {
			switch typ {
			case cushion.DebtAdd:
				return s.ledger.IncreaseDebt(id, amount)
			case cushion.DebtRepay:
				return s.ledger.RepayDebt(id, amount)
			default:
				return s.ledger.CloseDebt(id)
			}
		})
	}
}

type tradeRow struct {
	cushion.Trade
	Realized decimal.Decimal `json:"realized"`
}

type tradesResponse struct {
	Trades []tradeRow         `json:"trades"`
	Stats  cushion.TradeStats `json:"stats"`
}

// GET /trades
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := tradesResponse{Trades: []tradeRow{}, Stats: s.trades.Stats()}
	for _, t := range s.trades.Trades() {
		resp.Trades = append(resp.Trades, tradeRow{Trade: t, Realized: cushion.RealizedPnL(t)})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type openRequest struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Qty    string `json:"qty"`
	Price  string `json:"price"`
	Date   string `json:"date"` // optional, defaults to today
	Note   string `json:"note"`
}

// POST /trades
func (s *Server) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	side, err := cushion.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, err)
		return
	}
	qty, err := cushion.ParseAmount(req.Qty)
	if err != nil {
		s.writeError(w, err)
		return
	}
	price, err := cushion.ParseAmount(req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var on date.Date
	if req.Date != "" {
		if on, err = date.Parse(req.Date); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	s.mutate(w, http.StatusCreated, func() (any, error) {
		return s.trades.OpenTrade(req.Symbol, side, qty, price, on, req.Note)
	})
}

type closeRequest struct {
	Qty   string `json:"qty"` // empty closes the whole remaining quantity
	Price string `json:"price"`
}

// POST /trades/{id}/close
func (s *Server) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req closeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	price, err := cushion.ParseAmount(req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var qty decimal.Decimal
	if req.Qty != "" {
		if qty, err = cushion.ParseAmount(req.Qty); err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.mutate(w, http.StatusOK, func() (any, error) {
		var err error
		if req.Qty == "" {
			_, err = s.trades.CloseFull(id, price)
		} else {
			_, err = s.trades.ClosePartial(id, qty, price)
		}
		if err != nil {
			return nil, err
		}
		t, _ := s.trades.Trade(id)
		return tradeRow{Trade: t, Realized: cushion.RealizedPnL(t)}, nil
	})
}

func queryFloat(q map[string][]string, key string, def float64) (float64, error) {
	v := strings.TrimSpace(firstOf(q[key]))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, key, v)
	}
	return f, nil
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q is not a count", errBadRequest, v)
	}
	return i, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// GET /projection/future-value?principal=&monthly=&rate=&years=
func (s *Server) handleFutureValue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var principal, monthly, rate, years float64
	for _, p := range []struct {
		key string
		v   *float64
	}{{"principal", &principal}, {"monthly", &monthly}, {"rate", &rate}, {"years", &years}} {
		f, err := queryFloat(q, p.key, 0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		*p.v = f
	}
	value, contributed := cushion.FutureValue(principal, monthly, rate, years), principal+monthly*12*years
	if !finite(value) || !finite(contributed) {
		s.writeError(w, fmt.Errorf("%w: projection out of range", errBadRequest))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]float64{
		"value":       value,
		"contributed": contributed,
	})
}

type payoffResponse struct {
	Months *float64 `json:"months"` // null when the debt is never repaid
	Never  bool     `json:"never"`
}

// GET /projection/payoff?principal=&payment=&rate=
func (s *Server) handlePayoff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var principal, payment, rate float64
	for _, p := range []struct {
		key string
		v   *float64
	}{{"principal", &principal}, {"payment", &payment}, {"rate", &rate}} {
		f, err := queryFloat(q, p.key, 0)
		if err != nil {
			s.writeError(w, err)
			return
		}
		*p.v = f
	}
	months := cushion.DebtPayoffMonths(principal, payment, rate)
	if math.IsNaN(months) {
		s.writeError(w, fmt.Errorf("%w: payoff out of range", errBadRequest))
		return
	}
	if math.IsInf(months, 1) {
		s.writeJSON(w, http.StatusOK, payoffResponse{Never: true})
		return
	}
	s.writeJSON(w, http.StatusOK, payoffResponse{Months: &months})
}

// finite reports whether v can be encoded in JSON.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
