// Package api serves a ledger and a trading journal over HTTP, as JSON.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds the server dependencies.
type Config struct {
	Port            int
	Log             zerolog.Logger
	Ledger          *cushion.Ledger
	Trades          *cushion.TradeBook
	Currency        string          // default currency of new entries
	MonthlyExpenses decimal.Decimal // for the runway
	Today           func() date.Date

	// Save is called after every successful mutation. It may be nil.
	Save func(l *cushion.Ledger, b *cushion.TradeBook) error
}

// Server is the HTTP server.
//
// Every request runs under a single mutex: the ledger and the journal are
// not safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	ledger *cushion.Ledger
	trades *cushion.TradeBook
	cfg    Config

	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Today == nil {
		cfg.Today = date.Today
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.Ledger == nil {
		cfg.Ledger = cushion.NewLedger()
	}
	if cfg.Trades == nil {
		cfg.Trades = cushion.NewTradeBook()
	}
	s := &Server{
		ledger: cfg.Ledger,
		trades: cfg.Trades,
		cfg:    cfg,
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/summary", s.handleSummary)
	s.router.Get("/chart", s.handleChart)
	s.router.Get("/stats/{series}", s.handleStats)

	s.router.Post("/emergency", s.handleRecord(cushion.EmergencyLog))
	s.router.Post("/invest", s.handleRecord(cushion.InvestLog))
	s.router.Get("/logs/{log}", s.handleListLog)
	s.router.Delete("/logs/{log}/{id}", s.handleDelete)

	s.router.Route("/debts", func(r chi.Router) {
		r.Get("/", s.handleListDebts)
		r.Post("/", s.handleRecordDebt)
		r.Post("/{id}/increase", s.handleDebtEvent(cushion.DebtAdd))
		r.Post("/{id}/repay", s.handleDebtEvent(cushion.DebtRepay))
		r.Post("/{id}/close", s.handleDebtEvent(cushion.DebtClose))
	})

	s.router.Route("/trades", func(r chi.Router) {
		r.Get("/", s.handleListTrades)
		r.Post("/", s.handleOpenTrade)
		r.Post("/{id}/close", s.handleCloseTrade)
	})

	s.router.Route("/projection", func(r chi.Router) {
		r.Get("/future-value", s.handleFutureValue)
		r.Get("/payoff", s.handlePayoff)
	})
}

// Do runs fn with exclusive access to the ledger and the journal, then saves
// them. Background jobs use it to share the server state.
func (s *Server) Do(fn func(l *cushion.Ledger, b *cushion.TradeBook)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ledger, s.trades)
	return s.save()
}

// save must be called with s.mu held.
func (s *Server) save() error {
	if s.cfg.Save == nil {
		return nil
	}
	return s.cfg.Save(s.ledger, s.trades)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
