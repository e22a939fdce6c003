package cushion

import (
	"sync"
	"testing"

	"github.com/etnz/cushion/date"
	"github.com/shopspring/decimal"
)

// dec is a helper for test to create decimals from literals.
func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fixedClock returns a clock that can be moved by the test.
func fixedClock(day string) (func() date.Date, func(string)) {
	current := date.MustParse(day)
	return func() date.Date { return current }, func(d string) { current = date.MustParse(d) }
}

// recorder is a Dispatcher keeping every Command.
type recorder struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *recorder) Dispatch(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
}

func (r *recorder) commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.cmds...)
}

// assertDecimal fails when got and want are not the same number.
func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("got %s, want %s", got, want)
	}
}
