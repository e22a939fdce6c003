package scheduler

import (
	"github.com/etnz/cushion"
	"github.com/rs/zerolog"
)

// State gives exclusive access to the ledger and the journal, and persists
// them once fn returns. api.Server implements it.
type State interface {
	Do(fn func(l *cushion.Ledger, b *cushion.TradeBook)) error
}

// Syncer is the part of cushion.Syncer used by SyncJob.
type Syncer interface {
	Retry(sources ...cushion.Pender) int
	Reconcile(targets ...cushion.Remapper) int
}

// SyncJob applies the identifiers assigned by the remote store, and
// dispatches again the entries that never reached it.
type SyncJob struct {
	state  State
	syncer Syncer
	log    zerolog.Logger
}

// NewSyncJob creates a new sync job.
func NewSyncJob(state State, syncer Syncer, log zerolog.Logger) *SyncJob {
	return &SyncJob{state: state, syncer: syncer, log: log.With().Str("job", "sync").Logger()}
}

// Name returns the job name
func (j *SyncJob) Name() string { return "sync" }

// Run reconciles first: entries remapped by the previous run are not retried.
func (j *SyncJob) Run() error {
	return j.state.Do(func(l *cushion.Ledger, b *cushion.TradeBook) {
		applied := j.syncer.Reconcile(l, b)
		retried := j.syncer.Retry(l, b)
		if applied > 0 || retried > 0 {
			j.log.Info().Int("remapped", applied).Int("retried", retried).Msg("sync cycle")
		}
	})
}

// CheckpointJob appends the current balances to the histories, so that charts
// get a point per run even on days without activity.
type CheckpointJob struct {
	state State
}

// NewCheckpointJob creates a new checkpoint job.
func NewCheckpointJob(state State) *CheckpointJob {
	return &CheckpointJob{state: state}
}

// Name returns the job name
func (j *CheckpointJob) Name() string { return "checkpoint" }

// Run appends one point to every history.
func (j *CheckpointJob) Run() error {
	return j.state.Do(func(l *cushion.Ledger, _ *cushion.TradeBook) { l.Checkpoint() })
}
