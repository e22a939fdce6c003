package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/etnz/cushion/renderer"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// Func implements a simple Function
type Func struct {
	Decl *genai.FunctionDeclaration
	Func func(ctx context.Context, args map[string]any) (string, error)
}

func (f *Func) Declaration() *genai.FunctionDeclaration { return f.Decl }

// Call runs the function, reporting errors in the response.
func (f *Func) Call(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
	out, err := f.Func(ctx, args)
	if err != nil {
		return failure(id, f.Decl.Name, err)
	}
	return output(id, f.Decl.Name, out)
}

// Books is what the Accountant reads.
type Books struct {
	Ledger          *cushion.Ledger
	Trades          *cushion.TradeBook
	Currency        string
	MonthlyExpenses decimal.Decimal
	Today           func() date.Date
}

var markdownResponse = &genai.Schema{Type: genai.TypeString, Description: "A markdown report."}

func object(required []string, properties map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: properties, Required: required}
}

func str(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func num(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: description}
}

// Tools returns the functions reading b.
func Tools(b Books) []*Func {
	if b.Today == nil {
		b.Today = date.Today
	}
	return []*Func{
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Status",
				Description: "Balances of the emergency fund and investments, total debt, net worth, runway in months of expenses, and open debts.",
				Response:    markdownResponse,
			},
			Func: func(context.Context, map[string]any) (string, error) {
				return renderer.RenderStatus(renderer.NewStatus(b.Today(), b.Currency, b.Ledger, b.Trades, b.MonthlyExpenses)), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Transactions",
				Description: "Every transaction of the emergency fund or of the investment account, and its balance.",
				Parameters: object([]string{"log"}, map[string]*genai.Schema{
					"log": {Type: genai.TypeString, Enum: []string{"emergency", "invest"}, Description: "The log to list."},
				}),
				Response: markdownResponse,
			},
			Func: func(_ context.Context, args map[string]any) (string, error) {
				log, err := cushion.ParseLog(stringArg(args, "log", ""))
				if err != nil {
					return "", err
				}
				txs, err := b.Ledger.Transactions(log)
				if err != nil {
					return "", err
				}
				balance := b.Ledger.CashReserve()
				if log == cushion.InvestLog {
					balance = b.Ledger.InvestmentBalance()
				}
				return renderer.RenderTransactions(&renderer.Transactions{Log: log, Transactions: txs, Balance: balance, Currency: b.Currency}), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Debts",
				Description: "Every debt, open or settled, with its outstanding amount and its history of increases and repayments.",
				Response:    markdownResponse,
			},
			Func: func(context.Context, map[string]any) (string, error) {
				return renderer.RenderDebts(&renderer.Debts{Debts: b.Ledger.Debts(), Total: b.Ledger.TotalDebt(), Currency: b.Currency}), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Trades",
				Description: "The trading journal: every trade, its remaining quantity and realized profit, and the win rate.",
				Response:    markdownResponse,
			},
			Func: func(context.Context, map[string]any) (string, error) {
				return renderer.RenderTrades(renderer.NewTrades(b.Trades.Trades(), b.Trades.Stats(), nil)), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Statistics",
				Description: "Statistics of a balance history: min, max, average, change, volatility, max drawdown and value at risk.",
				Parameters: object([]string{"series"}, map[string]*genai.Schema{
					"series": {Type: genai.TypeString, Enum: []string{"cushion", "investment", "debt"}, Description: "The balance history."},
					"window": {Type: genai.TypeString, Enum: []string{"1M", "3M", "6M", "1Y", "ALL"}, Description: "The period, ending today. Defaults to ALL."},
				}),
				Response: markdownResponse,
			},
			Func: func(_ context.Context, args map[string]any) (string, error) {
				name, err := cushion.ParseSeriesName(stringArg(args, "series", ""))
				if err != nil {
					return "", err
				}
				window, err := date.ParseWindow(stringArg(args, "window", ""))
				if err != nil {
					return "", err
				}
				values := window.Filter(b.Today(), history(b.Ledger, name)).Values()
				return renderer.RenderStats(&renderer.Stats{Series: name, Window: window, Description: cushion.Describe(values, 0)}), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Projection",
				Description: "Projects savings compounded monthly, year by year.",
				Parameters: object([]string{"principal", "monthly", "rate", "years"}, map[string]*genai.Schema{
					"principal": num("The starting amount."),
					"monthly":   num("The contribution added at the end of every month."),
					"rate":      num("The annual rate, in percent."),
					"years":     {Type: genai.TypeInteger, Description: "How many years to project."},
				}),
				Response: markdownResponse,
			},
			Func: func(_ context.Context, args map[string]any) (string, error) {
				years := int(numberArg(args, "years"))
				if years <= 0 || years > 100 {
					return "", fmt.Errorf("years must be between 1 and 100, got %d", years)
				}
				p := renderer.NewProjection(numberArg(args, "principal"), numberArg(args, "monthly"), numberArg(args, "rate"), years, b.Currency)
				return renderer.RenderProjection(p), nil
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Payoff",
				Description: "How many months it takes to repay a debt with a fixed monthly payment.",
				Parameters: object([]string{"payment", "rate"}, map[string]*genai.Schema{
					"debt":      str("The name of a recorded debt. Its outstanding amount is the principal."),
					"principal": num("The amount to repay, when no debt is named."),
					"payment":   num("The monthly payment."),
					"rate":      num("The annual rate, in percent."),
				}),
				Response: markdownResponse,
			},
			Func: func(_ context.Context, args map[string]any) (string, error) {
				p := &renderer.Payoff{
					Principal: numberArg(args, "principal"),
					Payment:   numberArg(args, "payment"),
					Rate:      numberArg(args, "rate"),
					Currency:  b.Currency,
				}
				if name := stringArg(args, "debt", ""); name != "" {
					d, err := debtNamed(b.Ledger, name)
					if err != nil {
						return "", err
					}
					p.Name, p.Principal, p.Currency = d.Name, d.Amount.InexactFloat64(), d.Currency
				}
				p.Months = cushion.DebtPayoffMonths(p.Principal, p.Payment, p.Rate)
				return renderer.RenderPayoff(p), nil
			},
		},
	}
}

func history(l *cushion.Ledger, name cushion.SeriesName) date.Series {
	switch name {
	case cushion.InvestmentSeries:
		return l.InvestmentHistory()
	case cushion.DebtSeries:
		return l.DebtHistory()
	default:
		return l.CushionHistory()
	}
}

// debtNamed finds an open debt by name, case insensitive.
func debtNamed(l *cushion.Ledger, name string) (cushion.DebtRecord, error) {
	for _, d := range l.Debts() {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) && !d.Settled() {
			return d, nil
		}
	}
	return cushion.DebtRecord{}, fmt.Errorf("no open debt named %q: %w", name, cushion.ErrNotFound)
}

func stringArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return def
}

func numberArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		d, err := cushion.ParseAmount(v)
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	}
	return 0
}
