package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/agent"
	"github.com/etnz/cushion/api"
	"github.com/etnz/cushion/scheduler"
	"github.com/etnz/cushion/store"
	"github.com/google/subcommands"
	"google.golang.org/genai"
)

type pullCmd struct{}

func (*pullCmd) Name() string     { return "pull" }
func (*pullCmd) Synopsis() string { return "restore the books from the store" }
func (*pullCmd) Usage() string {
	return `cush pull

  Replaces the entries of the state file with the ones of the store
  (CUSHION_STORE or -store) for the owner. The local balance histories are
  kept, and a point with the pulled balances is appended.
`
}

func (*pullCmd) SetFlags(*flag.FlagSet) {}

func (*pullCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, log, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if cfg.StorePath == "" {
		return usageError("pull requires a store, use -store or CUSHION_STORE")
	}
	local, err := cushion.LoadState(cfg.StatePath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the books:", err)
		return subcommands.ExitFailure
	}
	st, err := store.Open(cfg.StorePath, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	pulled, err := st.Pull(ctx, cfg.Owner, cushion.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error pulling the books:", err)
		return subcommands.ExitFailure
	}
	p := pulled.Ledger
	l := cushion.RestoreLedger(p.Emergency(), p.Invest(), p.Debts(), local.Ledger.Histories())
	l.Checkpoint()
	if err := cushion.SaveState(cfg.StatePath(), l, pulled.Trades); err != nil {
		fmt.Fprintln(os.Stderr, "Error saving the books:", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "pulled %d transactions, %d debts and %d trades\n",
		len(p.Emergency())+len(p.Invest()), len(p.Debts()), len(pulled.Trades.Trades()))
	return subcommands.ExitSuccess
}

type serveCmd struct {
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the books over HTTP" }
func (*serveCmd) Usage() string {
	return `cush serve [-port <port>]

  Serves the books as a JSON API. With a store, entries are synced in the
  background and failed syncs are retried on CUSHION_SYNC_SCHEDULE. A balance
  point is appended to the histories every day.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.port, "port", 0, "Port to listen on. Defaults to CUSHION_PORT.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the books:", err)
		return subcommands.ExitFailure
	}
	port := s.cfg.Port
	if c.port > 0 {
		port = c.port
	}
	statePath := s.cfg.StatePath()
	srv := api.New(api.Config{
		Port:            port,
		Log:             s.log,
		Ledger:          s.state.Ledger,
		Trades:          s.state.Trades,
		Currency:        s.cfg.Currency,
		MonthlyExpenses: s.cfg.MonthlyExpenses,
		Save: func(l *cushion.Ledger, b *cushion.TradeBook) error {
			return cushion.SaveState(statePath, l, b)
		},
	})

	sched := scheduler.New(s.log)
	if s.syncer != nil {
		s.syncer.Retry(s.state.Ledger, s.state.Trades)
		if err := sched.AddJob(s.cfg.SyncSchedule, scheduler.NewSyncJob(srv, s.syncer, s.log)); err != nil {
			s.abort()
			return usageError("CUSHION_SYNC_SCHEDULE: %v", err)
		}
	}
	if err := sched.AddJob("@daily", scheduler.NewCheckpointJob(srv)); err != nil {
		s.abort()
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	sched.Start()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	status := subcommands.ExitSuccess
	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			status = subcommands.ExitFailure
		}
	}

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("Server shutdown failed")
	}

	err = srv.Do(func(l *cushion.Ledger, b *cushion.TradeBook) {
		if s.syncer != nil {
			s.syncer.Close()
			s.syncer.Reconcile(l, b)
		}
	})
	if s.store != nil {
		s.store.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error saving the books:", err)
		return subcommands.ExitFailure
	}
	return status
}

// assistCmd is the subcommand for the AI assistant.
type assistCmd struct{}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "start an interactive session with the AI assistant" }
func (*assistCmd) Usage() string {
	return `cush assist [question...]

  Starts an interactive session with an assistant that reads the books. The
  Gemini API key is read from GEMINI_API_KEY, the model from GEMINI_MODEL.
`
}

func (*assistCmd) SetFlags(*flag.FlagSet) {}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the books:", err)
		return subcommands.ExitFailure
	}

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing Gemini's client:", err)
		return subcommands.ExitFailure
	}

	model := s.cfg.GeminiModel
	accountant := agent.NewAccountant(model, s.log, agent.Tools(agent.Books{
		Ledger:          s.state.Ledger,
		Trades:          s.state.Trades,
		Currency:        s.cfg.Currency,
		MonthlyExpenses: s.cfg.MonthlyExpenses,
	}))
	advisor := agent.NewAdvisor(model, s.log)
	a := agent.New(os.Stdout, os.Stdin, agent.NewFacilitator(model, s.log, accountant, advisor), accountant, advisor)
	a.Print = func(_ io.Writer, md string) { printMarkdown(md) }

	var prompts []string
	if f.NArg() > 0 {
		prompts = append(prompts, strings.Join(f.Args(), " "))
	}
	if err := a.Run(ctx, client, prompts...); err != nil {
		fmt.Fprintln(os.Stderr, "Agent failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
