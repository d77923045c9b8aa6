package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InMemoryStore implements transcript.Store using a mutex-guarded map.
// Transcripts live until process exit unless idle eviction is enabled.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]*memoryEntry
	limits      transcript.Limits
	logger      zerolog.Logger
	now         func() time.Time

	evictIdle     time.Duration
	evictInterval time.Duration
	evictRunning  bool
}

type memoryEntry struct {
	turns        []chat.Turn
	lastActivity time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryLogger sets the logger used for eviction events.
func WithMemoryLogger(logger zerolog.Logger) MemoryOption {
	return func(s *InMemoryStore) {
		s.logger = logger
	}
}

// NewInMemoryStore creates a new in-memory transcript store.
func NewInMemoryStore(limits transcript.Limits, opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		transcripts: make(map[string]*memoryEntry),
		limits:      limits,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements transcript.Store.
func (s *InMemoryStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts[id] = &memoryEntry{lastActivity: s.now()}
	return id, nil
}

// Exists implements transcript.Store.
func (s *InMemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.transcripts[id]
	return ok, nil
}

// Append implements transcript.Store.
func (s *InMemoryStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.transcripts[id]
	if !ok {
		entry = &memoryEntry{}
		s.transcripts[id] = entry
	}
	entry.turns = chat.AppendTurn(entry.turns, turn.Clone(), s.limits.MaxTokens, s.limits.MaxTurns)
	entry.lastActivity = s.now()
	return nil
}

// Get implements transcript.Store.
func (s *InMemoryStore) Get(ctx context.Context, id string) ([]chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.transcripts[id]
	if !ok {
		return []chat.Turn{}, nil
	}
	entry.lastActivity = s.now()
	return chat.CloneTurns(entry.turns), nil
}

// Clear implements transcript.Store.
func (s *InMemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.transcripts[id]
	if !ok {
		return nil
	}
	entry.turns = nil
	entry.lastActivity = s.now()
	return nil
}

// Len returns the number of conversations held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcripts)
}

// Close implements transcript.Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcripts = make(map[string]*memoryEntry)
	return nil
}

// SetEvictionConfig sets how long a conversation may stay untouched before it
// is dropped, and how often the eviction loop checks.
func (s *InMemoryStore) SetEvictionConfig(idle, interval time.Duration) {
	s.mu.Lock()
	s.evictIdle = idle
	s.evictInterval = interval
	s.mu.Unlock()
}

// StartEvictionLoop runs idle eviction until ctx is done.
// It returns immediately when eviction is disabled or already running.
func (s *InMemoryStore) StartEvictionLoop(ctx context.Context) {
	s.mu.Lock()
	if s.evictRunning {
		s.mu.Unlock()
		return
	}
	idle := s.evictIdle
	interval := s.evictInterval
	if idle <= 0 || interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.evictRunning = true
	s.mu.Unlock()

	go s.runEvictionLoop(ctx, interval)
}

func (s *InMemoryStore) runEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.evictRunning = false
			s.mu.Unlock()
			return
		case now := <-ticker.C:
			if n := s.evictIdleOnce(now); n > 0 {
				s.logger.Debug().Int("evicted", n).Msg("evicted idle conversations")
			}
		}
	}
}

func (s *InMemoryStore) evictIdleOnce(now time.Time) int {
	if now.IsZero() {
		now = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evictIdle <= 0 {
		return 0
	}
	evicted := 0
	for id, entry := range s.transcripts {
		if entry.lastActivity.IsZero() {
			continue
		}
		if now.Sub(entry.lastActivity) >= s.evictIdle {
			delete(s.transcripts, id)
			evicted++
		}
	}
	return evicted
}

var _ transcript.Store = (*InMemoryStore)(nil)
