package runstate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"carbonscan/internal/logging"
	"carbonscan/internal/services"
)

// Persister writes and reads snapshot bytes for a project. The SQLite-backed
// implementation lives in projectstore.
type Persister interface {
	SaveSnapshot(ctx context.Context, projectID string, body []byte) error
	LoadSnapshot(ctx context.Context, projectID string) ([]byte, error)
}

// Store owns a RunState and serializes all access to it. Mutations schedule
// a debounced snapshot write; rapid mutation bursts collapse into a single
// write once the debounce window elapses without further changes.
type Store struct {
	persister Persister
	projectID string
	debounce  time.Duration
	logger    *slog.Logger

	mu            sync.Mutex
	state         *RunState
	timer         *time.Timer
	lastPersisted []byte
	closed        bool
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Persister Persister
	ProjectID string
	// Debounce is the quiet period after the last mutation before a snapshot
	// is written. Zero means write immediately on every mutation.
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewStore creates a Store around a fresh RunState. Use Load to resume a
// persisted run instead.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		persister: opts.Persister,
		projectID: opts.ProjectID,
		debounce:  opts.Debounce,
		logger:    logging.NewComponentLogger(logger, "runstate"),
		state:     New(),
	}
}

// Load resumes the persisted run for the project, or starts a fresh one when
// nothing is stored or the stored snapshot cannot be decoded. A corrupt
// snapshot is logged and discarded rather than blocking the session.
func Load(ctx context.Context, opts StoreOptions) (*Store, error) {
	store := NewStore(opts)
	if store.persister == nil {
		return store, nil
	}
	body, err := store.persister.LoadSnapshot(ctx, store.projectID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return store, nil
	case err != nil:
		return nil, services.Wrap(services.ErrExternalService, "runstate", "load", "read snapshot", err)
	}
	state, err := UnmarshalSnapshot(body)
	if err != nil {
		store.logger.Warn("discarding unreadable snapshot, starting fresh",
			logging.String(logging.FieldProject, store.projectID),
			logging.Error(err))
		return store, nil
	}
	store.state = state
	store.lastPersisted = body
	return store, nil
}

// NewRun discards the current state and starts a fresh run, persisting the
// empty state immediately so a stale snapshot cannot resurrect it.
func (s *Store) NewRun(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("runstate store closed")
	}
	s.state = New()
	s.state.RecomputeValidity()
	s.mu.Unlock()
	return s.Flush(ctx)
}

// View calls fn with the current state under the store lock. fn must not
// retain or mutate the state.
func (s *Store) View(fn func(state *RunState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Mutate applies fn to the state under the store lock, recomputes step
// validity, and schedules a debounced persist. The error from fn is returned
// unchanged; persistence is scheduled regardless, since fn may have mutated
// state before failing.
func (s *Store) Mutate(fn func(state *RunState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("runstate store closed")
	}
	err := fn(s.state)
	s.state.RecomputeValidity()
	s.schedulePersistLocked()
	return err
}

// Flush cancels any pending debounce and writes the snapshot now, if it
// differs from the last persisted bytes.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.cancelTimerLocked()
	body, err := s.snapshotIfDirtyLocked()
	s.mu.Unlock()
	if err != nil || body == nil {
		return err
	}
	return s.persist(ctx, body)
}

// Close flushes pending state and rejects further mutation.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.cancelTimerLocked()
	s.mu.Unlock()
	return err
}

// schedulePersistLocked arms the debounce timer, replacing any pending one
// so only the final write in a burst survives.
func (s *Store) schedulePersistLocked() {
	if s.persister == nil {
		return
	}
	if s.debounce <= 0 {
		if body, err := s.snapshotIfDirtyLocked(); err == nil && body != nil {
			go s.persistAsync(body)
		}
		return
	}
	s.cancelTimerLocked()
	s.timer = time.AfterFunc(s.debounce, s.persistDebounced)
}

func (s *Store) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) persistDebounced() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	body, err := s.snapshotIfDirtyLocked()
	s.mu.Unlock()
	if err != nil || body == nil {
		return
	}
	s.persistAsync(body)
}

// snapshotIfDirtyLocked serializes the state and returns nil when the bytes
// match the last persisted snapshot. Marshal failures are logged and treated
// as clean; they indicate a programming defect, not an operational fault.
func (s *Store) snapshotIfDirtyLocked() ([]byte, error) {
	if s.persister == nil {
		return nil, nil
	}
	body, err := s.state.MarshalSnapshot()
	if err != nil {
		s.logger.Error("snapshot marshal failed", logging.Error(err))
		return nil, err
	}
	if bytes.Equal(body, s.lastPersisted) {
		return nil, nil
	}
	return body, nil
}

func (s *Store) persistAsync(body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.persist(ctx, body); err != nil {
		// In-memory state stays authoritative; the next mutation retries.
		s.logger.Warn("snapshot write failed",
			logging.String(logging.FieldProject, s.projectID),
			logging.Error(err))
	}
}

func (s *Store) persist(ctx context.Context, body []byte) error {
	if err := s.persister.SaveSnapshot(ctx, s.projectID, body); err != nil {
		return services.Wrap(services.ErrExternalService, "runstate", "persist", "write snapshot", err)
	}
	s.mu.Lock()
	s.lastPersisted = body
	s.mu.Unlock()
	return nil
}
