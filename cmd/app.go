// Package cmd implements the cush command line application.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/cushion"
	"github.com/etnz/cushion/config"
	"github.com/etnz/cushion/logger"
	"github.com/etnz/cushion/store"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Commands lists the subcommands by group.
var Commands = []struct {
	Group    string
	Commands []subcommands.Command
}{
	{"emergency fund", []subcommands.Command{
		newTxCmd("deposit", cushion.EmergencyLog, cushion.Deposit, "add money to the emergency fund"),
		newTxCmd("withdraw", cushion.EmergencyLog, cushion.Withdraw, "take money from the emergency fund"),
	}},
	{"investments", []subcommands.Command{
		newTxCmd("invest", cushion.InvestLog, cushion.In, "add money to the investment account"),
		newTxCmd("divest", cushion.InvestLog, cushion.Out, "take money from the investment account"),
	}},
	{"debts", []subcommands.Command{&borrowCmd{}, &repayCmd{}, &settleCmd{}}},
	{"trades", []subcommands.Command{&openCmd{}, &closeCmd{}, &rmTradeCmd{}}},
	{"books", []subcommands.Command{&rmCmd{}, &pullCmd{}}},
	{"reports", []subcommands.Command{
		&statusCmd{}, &txCmd{}, &debtsCmd{}, &tradesCmd{}, &chartCmd{}, &statsCmd{}, &projectCmd{}, &payoffCmd{},
	}},
	{"services", []subcommands.Command{&serveCmd{}, &assistCmd{}}},
	{"help", []subcommands.Command{&topicCmd{}}},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, g := range Commands {
		for _, cmd := range g.Commands {
			c.Register(cmd, g.Group)
		}
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	stateFile = flag.String("state", "", "Path to the state file (JSONL). Overrides CUSHION_STATE_FILE.")
	storePath = flag.String("store", "", "Path to the SQLite store to sync with. Overrides CUSHION_STORE.")
	owner     = flag.String("owner", "", "Owner of the records in the store. Overrides CUSHION_OWNER.")
	raw       = flag.Bool("raw", false, "Print reports as raw markdown.")
)

// stdout is where reports are printed.
var stdout io.Writer = os.Stdout

// loadConfig reads the configuration and applies the global flags.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if *stateFile != "" {
		cfg.StateFile = *stateFile
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *owner != "" {
		cfg.Owner = *owner
	}
	return cfg, logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty}), nil
}

// session is the state of the books during a command.
type session struct {
	cfg    *config.Config
	log    zerolog.Logger
	state  cushion.State
	store  *store.SQLite
	syncer *cushion.Syncer
}

// openSession loads the state file. With sync, mutations are replicated to
// the configured store, if any. Entries still waiting for a server id are
// sent again by commit only, so that an aborted session never inserts
// records whose server ids would be lost.
func openSession(ctx context.Context, sync bool) (*session, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log}
	opts := []cushion.Option{cushion.WithLogger(log)}
	if sync && cfg.StorePath != "" {
		if s.store, err = store.Open(cfg.StorePath, log); err != nil {
			return nil, err
		}
		s.syncer = cushion.NewSyncer(s.store, cfg.Owner, log)
		s.syncer.Start(ctx)
		opts = append(opts, cushion.WithDispatcher(s.syncer))
	}
	if s.state, err = cushion.LoadState(cfg.StatePath(), opts...); err != nil {
		s.abort()
		return nil, err
	}
	return s, nil
}

// abort releases the store without saving.
func (s *session) abort() {
	if s.syncer != nil {
		s.syncer.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// commit sends the entries still waiting for a server id, waits for the
// remote sync, applies the identifiers it assigned, and saves the state file.
func (s *session) commit() error {
	if s.syncer != nil {
		s.syncer.Retry(s.state.Ledger, s.state.Trades)
		s.syncer.Close()
		s.syncer.Reconcile(s.state.Ledger, s.state.Trades)
	}
	if s.store != nil {
		s.store.Close()
	}
	return cushion.SaveState(s.cfg.StatePath(), s.state.Ledger, s.state.Trades)
}

// mutate opens a session, applies fn and commits. fn's error is reported and
// nothing is saved.
func mutate(ctx context.Context, fn func(s *session) error) subcommands.ExitStatus {
	s, err := openSession(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the books:", err)
		return subcommands.ExitFailure
	}
	if err := fn(s); err != nil {
		s.abort()
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if err := s.commit(); err != nil {
		fmt.Fprintln(os.Stderr, "Error saving the books:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// report opens a session without sync and prints what fn renders.
func report(ctx context.Context, fn func(s *session) (string, error)) subcommands.ExitStatus {
	s, err := openSession(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading the books:", err)
		return subcommands.ExitFailure
	}
	md, err := fn(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// usageError reports a usage error.
func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// printMarkdown renders md for the terminal.
func printMarkdown(md string) {
	if *raw {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(stdout, out)
			return
		}
	}
	fmt.Fprint(stdout, md)
}

// findDebt finds a debt by id, or an open debt by name.
func findDebt(l *cushion.Ledger, ref string) (cushion.DebtRecord, error) {
	if d, ok := l.Debt(ref); ok {
		return d, nil
	}
	for _, d := range l.Debts() {
		if !d.Settled() && strings.EqualFold(d.Name, ref) {
			return d, nil
		}
	}
	return cushion.DebtRecord{}, fmt.Errorf("debt %q: %w", ref, cushion.ErrNotFound)
}
