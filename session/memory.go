package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/incidentdesk/observability"
)

// Observer event types emitted by MemoryStore.
const (
	EventCreate observability.EventType = "session.create"
	EventAppend observability.EventType = "session.append"
	EventTrim   observability.EventType = "session.trim"
	EventEvict  observability.EventType = "session.evict"
)

type entry struct {
	mu     sync.Mutex
	turns  []Turn
	loaded bool

	// guarded by MemoryStore.mu
	lastAccess time.Time
	refs       int

	lock chan struct{}
}

// MemoryStore is a Store held in process memory, optionally backed by a
// Persister. Transcript data and the exchange lock are separate: readers
// never wait behind a running exchange.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*entry
	cfg       Config
	persister Persister
	observer  observability.Observer
	now       func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithPersister loads transcripts on first reference and saves them after
// every append.
func WithPersister(p Persister) Option {
	return func(s *MemoryStore) { s.persister = p }
}

// WithObserver sets the observer for session events.
func WithObserver(o observability.Observer) Option {
	return func(s *MemoryStore) { s.observer = o }
}

// WithClock replaces time.Now for access stamps and eviction.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(cfg Config, opts ...Option) *MemoryStore {
	defaults := DefaultConfig()
	defaults.Merge(&cfg)

	s := &MemoryStore{
		entries:  make(map[string]*entry),
		cfg:      defaults,
		observer: observability.NoOpObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *MemoryStore) Config() Config {
	return s.cfg
}

// acquire returns the entry for id, creating it if needed, and pins it
// against eviction. Callers must release.
func (s *MemoryStore) acquire(ctx context.Context, id string) *entry {
	s.mu.Lock()
	e, exists := s.entries[id]
	if !exists {
		e = &entry{lock: make(chan struct{}, 1)}
		s.entries[id] = e
	}
	e.refs++
	e.lastAccess = s.now()
	s.mu.Unlock()

	if !exists {
		observability.Emit(ctx, s.observer, EventCreate, observability.LevelVerbose, "session.memory", map[string]any{
			"session_id": id,
		})
	}
	return e
}

func (s *MemoryStore) release(e *entry) {
	s.mu.Lock()
	e.refs--
	e.lastAccess = s.now()
	s.mu.Unlock()
}

func (s *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	e := s.acquire(ctx, id)

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		s.release(e)
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, id, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.lock
			s.release(e)
		})
	}, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]Turn, bool) {
	s.mu.Lock()
	e, exists := s.entries[id]
	s.mu.Unlock()
	if !exists {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, false
	}
	return slices.Clone(e.turns), true
}

func (s *MemoryStore) Create(ctx context.Context, id string) ([]Turn, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	e := s.acquire(ctx, id)
	defer s.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.load(ctx, id, e); err != nil {
		return nil, err
	}
	return slices.Clone(e.turns), nil
}

// load reads a persisted snapshot into e once. Caller holds e.mu.
func (s *MemoryStore) load(ctx context.Context, id string, e *entry) error {
	if e.loaded {
		return nil
	}
	if s.persister != nil {
		turns, found, err := s.persister.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: load %s: %w", ErrPersist, id, err)
		}
		if found {
			e.turns, _ = s.retain(turns)
		}
	}
	e.loaded = true
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for i, t := range turns {
		if !t.Role.IsTurn() {
			return fmt.Errorf("%w: turn %d has role %q", ErrInvalidTurn, i, t.Role)
		}
	}

	e := s.acquire(ctx, id)
	defer s.release(e)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.load(ctx, id, e); err != nil {
		return err
	}

	next := make([]Turn, 0, len(e.turns)+len(turns))
	next = append(next, e.turns...)
	next = append(next, turns...)
	next, dropped := s.retain(next)

	if s.persister != nil {
		if err := s.persister.Save(ctx, id, next); err != nil {
			return fmt.Errorf("%w: save %s: %w", ErrPersist, id, err)
		}
	}
	e.turns = next

	observability.Emit(ctx, s.observer, EventAppend, observability.LevelVerbose, "session.memory", map[string]any{
		"session_id": id,
		"turns":      len(turns),
		"length":     len(next),
	})
	if dropped > 0 {
		s.emitTrim(ctx, id, dropped, len(next))
	}
	return nil
}

func (s *MemoryStore) Trim(id string) {
	s.mu.Lock()
	e, exists := s.entries[id]
	s.mu.Unlock()
	if !exists {
		return
	}

	e.mu.Lock()
	var dropped int
	e.turns, dropped = s.retain(e.turns)
	length := len(e.turns)
	e.mu.Unlock()

	if dropped > 0 {
		s.emitTrim(context.Background(), id, dropped, length)
	}
}

// retain keeps the newest Retain turns once the transcript exceeds twice
// that many. The returned slice never aliases the input when trimmed.
func (s *MemoryStore) retain(turns []Turn) ([]Turn, int) {
	n := s.cfg.Retain
	if n <= 0 || len(turns) <= 2*n {
		return turns, 0
	}
	dropped := len(turns) - n
	return slices.Clone(turns[dropped:]), dropped
}

func (s *MemoryStore) emitTrim(ctx context.Context, id string, dropped, length int) {
	observability.Emit(ctx, s.observer, EventTrim, observability.LevelInfo, "session.memory", map[string]any{
		"session_id": id,
		"dropped":    dropped,
		"length":     length,
	})
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts sessions idle for longer than IdleTTL as of now. Sessions
// that are locked or otherwise in use are kept. It returns the evicted ids.
func (s *MemoryStore) Sweep(now time.Time) []string {
	ttl := s.cfg.IdleTTL.Std()
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	var evicted []string
	for id, e := range s.entries {
		if e.refs > 0 || now.Sub(e.lastAccess) < ttl {
			continue
		}
		delete(s.entries, id)
		evicted = append(evicted, id)
	}
	s.mu.Unlock()

	slices.Sort(evicted)
	for _, id := range evicted {
		observability.Emit(context.Background(), s.observer, EventEvict, observability.LevelInfo, "session.memory", map[string]any{
			"session_id": id,
			"idle_ttl":   ttl.String(),
		})
	}
	return evicted
}

// Run sweeps idle sessions every SweepInterval until ctx ends. It returns
// immediately when eviction is disabled.
func (s *MemoryStore) Run(ctx context.Context) {
	if s.cfg.IdleTTL <= 0 || s.cfg.SweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.SweepInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
