package cushion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// QuoteSource looks up the current price of a symbol on a JSON web service.
//
// URL is a template where "{symbol}" is replaced by the escaped symbol, and
// Path is a JSONPath expression selecting the price in the response, for
// instance "$.quote.last" or "$.series.intraday.data[-1:][1]".
type QuoteSource struct {
	URL    string
	Path   string
	Client *http.Client
}

// ErrNoQuote is returned when the quote source is not configured.
var ErrNoQuote = errors.New("no quote source configured")

// Quote returns the current price of symbol.
func (q QuoteSource) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if q.URL == "" || q.Path == "" {
		return decimal.Zero, ErrNoQuote
	}
	client := q.Client
	if client == nil {
		client = http.DefaultClient
	}
	addr := strings.ReplaceAll(q.URL, "{symbol}", url.QueryEscape(symbol))

	var jobj any
	if err := jwget(ctx, client, addr, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("cannot get quote for %s: %w", symbol, err)
	}
	jval, err := jsonpath.Get(q.Path, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot read quote for %s at %q: %w", symbol, q.Path, err)
	}
	// jsonpath returns a list for filters and slices: keep the first answer.
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return decimal.Zero, fmt.Errorf("cannot read quote for %s at %q: no value", symbol, q.Path)
		}
		jval = jlist[0]
	}

	var price decimal.Decimal
	switch v := jval.(type) {
	case float64:
		price = decimal.NewFromFloat(v)
	case string:
		// some services return the price as a localized string.
		if price, err = ParseAmount(v); err != nil {
			return decimal.Zero, fmt.Errorf("cannot read quote for %s: %w", symbol, err)
		}
	default:
		return decimal.Zero, fmt.Errorf("cannot read quote for %s at %q: not a number: %v", symbol, q.Path, jval)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("cannot read quote for %s: empty price %s", symbol, price)
	}
	return price, nil
}

// Quotes looks up the current price of every open trade symbol. Lookups that
// fail are left out of the result and reported together in the error.
func (q QuoteSource) Quotes(ctx context.Context, trades []Trade) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal)
	var errs []error
	for _, t := range trades {
		if t.Closed() {
			continue
		}
		if _, done := prices[t.Symbol]; done {
			continue
		}
		p, err := q.Quote(ctx, t.Symbol)
		if err != nil {
			if errors.Is(err, ErrNoQuote) {
				return prices, err
			}
			errs = append(errs, err)
			continue
		}
		prices[t.Symbol] = p
	}
	return prices, errors.Join(errs...)
}
