package scheduler

import (
	"errors"
	"testing"

	"github.com/etnz/cushion"
	"github.com/etnz/cushion/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memState struct {
	ledger *cushion.Ledger
	trades *cushion.TradeBook
	saves  int
}

func (m *memState) Do(fn func(*cushion.Ledger, *cushion.TradeBook)) error {
	fn(m.ledger, m.trades)
	m.saves++
	return nil
}

// fakeSyncer remaps every pending entry to "srv-" + local id.
type fakeSyncer struct {
	pending []cushion.Command
	calls   []string
}

func (f *fakeSyncer) Retry(sources ...cushion.Pender) int {
	f.calls = append(f.calls, "retry")
	f.pending = nil
	for _, src := range sources {
		f.pending = append(f.pending, src.Pending()...)
	}
	return len(f.pending)
}

func (f *fakeSyncer) Reconcile(targets ...cushion.Remapper) int {
	f.calls = append(f.calls, "reconcile")
	n := 0
	for _, cmd := range f.pending {
		r := cushion.Remap{Log: cmd.Log, LocalID: cmd.LocalID, ServerID: "srv-" + cmd.LocalID}
		for _, t := range targets {
			if t.ApplyRemap(r) {
				n++
				break
			}
		}
	}
	f.pending = nil
	return n
}

type failingJob struct{ runs int }

func (j *failingJob) Name() string { return "failing" }
func (j *failingJob) Run() error {
	j.runs++
	return errors.New("boom")
}

func newState(t *testing.T) *memState {
	t.Helper()
	today := func() date.Date { return date.MustParse("2025-04-01") }
	l := cushion.NewLedger(cushion.WithClock(today))
	_, err := l.RecordEmergencyTx(cushion.Deposit, decimal.NewFromInt(100), "EUR", "Bank", "")
	require.NoError(t, err)
	b := cushion.NewTradeBook(cushion.WithClock(today))
	_, err = b.OpenTrade("ACME", cushion.Buy, decimal.NewFromInt(1), decimal.NewFromInt(10), date.Date{}, "")
	require.NoError(t, err)
	return &memState{ledger: l, trades: b}
}

func TestSyncJob(t *testing.T) {
	state := newState(t)
	syncer := &fakeSyncer{}
	job := NewSyncJob(state, syncer, zerolog.Nop())
	assert.Equal(t, "sync", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, []string{"reconcile", "retry"}, syncer.calls)
	assert.Len(t, syncer.pending, 2)

	// the next run applies the identifiers, then has nothing left to retry.
	require.NoError(t, job.Run())
	assert.Empty(t, state.ledger.Pending())
	assert.Empty(t, state.trades.Pending())
	assert.False(t, cushion.IsLocalID(state.ledger.Emergency()[0].ID))
	assert.Empty(t, syncer.pending)
	assert.Equal(t, 2, state.saves)
}

func TestCheckpointJob(t *testing.T) {
	state := newState(t)
	job := NewCheckpointJob(state)
	assert.Equal(t, "checkpoint", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, []float64{100, 100}, state.ledger.CushionHistory().Values())
	assert.Equal(t, []float64{0}, state.ledger.DebtHistory().Values())
	assert.Equal(t, 1, state.saves)
}

func TestScheduler(t *testing.T) {
	s := New(zerolog.Nop())
	job := &failingJob{}

	assert.Error(t, s.AddJob("not a schedule", job))
	require.NoError(t, s.AddJob("@every 1h", job))
	require.NoError(t, s.AddJob("*/5 * * * *", job))

	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	s.Start()
	s.Stop()
}
