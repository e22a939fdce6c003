package cushion

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Op is the kind of write a Command asks the remote store for.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Command is a write to replicate to the remote store.
//
// LocalID is the identifier the entry holds in the local log. For an insert
// it is a local id the store will replace, for update and delete it may be
// either a local id or a server id.
type Command struct {
	Op      Op
	Log     Log
	LocalID string
	Fields  map[string]any
}

// Dispatcher receives the Commands emitted by mutations. Dispatch must not
// block.
type Dispatcher interface {
	Dispatch(Command)
}

// Store is the remote persistence port, one entity per Log.
type Store interface {
	Insert(ctx context.Context, owner string, log Log, fields map[string]any) (string, error)
	Update(ctx context.Context, log Log, id string, fields map[string]any) error
	Delete(ctx context.Context, log Log, id string) error
}

// Remap tells that the entry LocalID of Log is now known as ServerID.
type Remap struct {
	Log      Log
	LocalID  string
	ServerID string
}

// Remapper is implemented by the owners of local logs (Ledger and TradeBook).
type Remapper interface {
	ApplyRemap(Remap) bool
}

// Pender is implemented by the owners of local logs to list the entries still
// waiting for a server id.
type Pender interface {
	Pending() []Command
}

// Syncer replicates Commands to a Store in the background.
//
// Writes are optimistic: the local log is already up to date when a Command is
// dispatched. A failed write is logged and forgotten, nothing is rolled back.
// A successful insert produces a Remap that the owner of the logs applies with
// Reconcile, on its own goroutine.
type Syncer struct {
	store   Store
	owner   string
	log     zerolog.Logger
	timeout time.Duration

	queue chan Command
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
	remaps []Remap

	// ids maps local ids to server ids. Only the worker touches it.
	ids map[string]string
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithTimeout sets the timeout of each call to the store.
func WithTimeout(d time.Duration) SyncerOption { return func(s *Syncer) { s.timeout = d } }

// WithQueueSize sets the number of Commands that can wait for the worker.
func WithQueueSize(n int) SyncerOption {
	return func(s *Syncer) { s.queue = make(chan Command, n) }
}

// NewSyncer creates a Syncer writing to store on behalf of owner.
// Call Start to run the worker.
func NewSyncer(store Store, owner string, log zerolog.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		store:   store,
		owner:   owner,
		log:     log.With().Str("component", "syncer").Logger(),
		timeout: 10 * time.Second,
		queue:   make(chan Command, 256),
		ids:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the worker until Close is called. Commands dispatched before
// Start wait in the queue.
func (s *Syncer) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for cmd := range s.queue {
			s.handle(ctx, cmd)
		}
	}()
}

// Dispatch queues cmd. It never blocks: when the queue is full or the Syncer
// is closed, the Command is dropped and the entry stays local.
func (s *Syncer) Dispatch(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn().Str("op", string(cmd.Op)).Str("id", cmd.LocalID).Msg("syncer closed, command dropped")
		return
	}
	select {
	case s.queue <- cmd:
	default:
		s.log.Warn().Str("op", string(cmd.Op)).Str("id", cmd.LocalID).Msg("sync queue full, command dropped")
	}
}

// Close stops accepting Commands, then waits for the worker to process the
// queued ones.
func (s *Syncer) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Reconcile applies the pending Remaps to the first target that knows each
// local id, and returns the number of Remaps applied.
func (s *Syncer) Reconcile(targets ...Remapper) int {
	s.mu.Lock()
	remaps := s.remaps
	s.remaps = nil
	s.mu.Unlock()

	applied := 0
	for _, r := range remaps {
		for _, t := range targets {
			if t.ApplyRemap(r) {
				applied++
				break
			}
		}
	}
	if applied < len(remaps) {
		s.log.Debug().Int("remaps", len(remaps)).Int("applied", applied).Msg("some remaps matched no entry")
	}
	return applied
}

// Retry dispatches again the inserts of entries still holding a local id.
func (s *Syncer) Retry(sources ...Pender) int {
	n := 0
	for _, src := range sources {
		for _, cmd := range src.Pending() {
			s.Dispatch(cmd)
			n++
		}
	}
	if n > 0 {
		s.log.Info().Int("entries", n).Msg("retrying pending inserts")
	}
	return n
}

func (s *Syncer) handle(ctx context.Context, cmd Command) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := s.log.With().Str("op", string(cmd.Op)).Str("log", string(cmd.Log)).Str("id", cmd.LocalID).Logger()

	switch cmd.Op {
	case OpInsert:
		if id, ok := s.ids[cmd.LocalID]; ok {
			// already inserted, the owner has not reconciled yet.
			s.push(Remap{Log: cmd.Log, LocalID: cmd.LocalID, ServerID: id})
			return
		}
		id, err := s.store.Insert(ctx, s.owner, cmd.Log, cmd.Fields)
		if err != nil {
			log.Warn().Err(err).Msg("remote insert failed, entry stays local")
			return
		}
		s.ids[cmd.LocalID] = id
		s.push(Remap{Log: cmd.Log, LocalID: cmd.LocalID, ServerID: id})
		log.Debug().Str("server_id", id).Msg("inserted")

	case OpUpdate, OpDelete:
		id := cmd.LocalID
		if server, ok := s.ids[id]; ok {
			id = server
		}
		if IsLocalID(id) {
			log.Debug().Msg("entry was never stored remotely, skipped")
			return
		}
		var err error
		if cmd.Op == OpUpdate {
			err = s.store.Update(ctx, cmd.Log, id, cmd.Fields)
		} else {
			err = s.store.Delete(ctx, cmd.Log, id)
		}
		if err != nil {
			log.Warn().Err(err).Msg("remote write failed")
			return
		}
		log.Debug().Str("server_id", id).Msg("written")

	default:
		log.Error().Msg("unknown sync operation")
	}
}

func (s *Syncer) push(r Remap) {
	s.mu.Lock()
	s.remaps = append(s.remaps, r)
	s.mu.Unlock()
}

// fieldsOf returns the JSON fields of v, numbers kept as json.Number.
func fieldsOf(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil
	}
	return fields
}
