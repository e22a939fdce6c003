package cushion

import (
	"github.com/etnz/cushion/date"
	"github.com/rs/zerolog"
)

// Option configures a Ledger or a TradeBook.
type Option func(*settings)

type settings struct {
	today func() date.Date
	sync  Dispatcher
	log   zerolog.Logger
	newID func() string
}

// WithClock sets the function returning "today". Defaults to date.Today.
func WithClock(today func() date.Date) Option {
	return func(s *settings) { s.today = today }
}

// WithDispatcher sets the persistence dispatcher that receives a Command for
// every mutation. Without it, mutations stay local.
func WithDispatcher(d Dispatcher) Option {
	return func(s *settings) { s.sync = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) { s.log = log }
}

func newSettings(component string, opts []Option) settings {
	s := settings{
		today: date.Today,
		sync:  discard{},
		log:   zerolog.Nop(),
		newID: newLocalID,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.log = s.log.With().Str("component", component).Logger()
	return s
}

// discard is the Dispatcher used when no persistence is configured.
type discard struct{}

func (discard) Dispatch(Command) {}
