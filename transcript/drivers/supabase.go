package drivers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/creastat/chat"
	"github.com/creastat/chat/transcript"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	supabaseConversationsTable = "conversations"
	supabaseTurnsTable         = "conversation_turns"
)

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL      string
	APIKey   string
	CacheTTL time.Duration // Default: 5 minutes
	Limits   transcript.Limits
}

// SupabaseStore implements transcript.Store on two PostgREST tables:
//
//	conversations(conv_id uuid primary key, created_at timestamptz default now())
//	conversation_turns(seq bigserial, conv_id uuid references conversations,
//	                   role text, content jsonb, token_count int)
type SupabaseStore struct {
	client   *supabase.Client
	cache    *existenceCache
	cacheTTL time.Duration
	limits   transcript.Limits
}

// existenceCache remembers conversation IDs known to exist.
type existenceCache struct {
	mu   sync.RWMutex
	byID map[string]*cacheEntry[bool]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

type supabaseConversationRow struct {
	ConvID string `json:"conv_id"`
}

type supabaseTurnRow struct {
	Seq        int64               `json:"seq,omitempty"`
	ConvID     string              `json:"conv_id"`
	Role       chat.Role           `json:"role"`
	Content    []chat.ContentBlock `json:"content"`
	TokenCount int                 `json:"token_count"`
}

// NewSupabaseStore creates a new Supabase-backed transcript store.
func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseStore{
		client:   client,
		cacheTTL: cfg.CacheTTL,
		cache:    newExistenceCache(),
		limits:   cfg.Limits,
	}, nil
}

func newExistenceCache() *existenceCache {
	return &existenceCache{byID: make(map[string]*cacheEntry[bool])}
}

// Create implements transcript.Store.
func (s *SupabaseStore) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, _, err := s.client.From(supabaseConversationsTable).
		Insert(supabaseConversationRow{ConvID: id}, false, "", "minimal", "").
		Execute()
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	s.cache.add(id, s.cacheTTL)
	return id, nil
}

// Exists implements transcript.Store.
func (s *SupabaseStore) Exists(ctx context.Context, id string) (bool, error) {
	if s.cache.get(id, time.Now()) {
		return true, nil
	}

	var rows []supabaseConversationRow
	_, err := s.client.From(supabaseConversationsTable).
		Select("conv_id", "", false).
		Eq("conv_id", id).
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to look up conversation: %w", err)
	}

	if len(rows) == 0 {
		return false, nil
	}
	s.cache.add(id, s.cacheTTL)
	return true, nil
}

// Append implements transcript.Store.
func (s *SupabaseStore) Append(ctx context.Context, id string, turn chat.Turn) error {
	if !s.cache.get(id, time.Now()) {
		_, _, err := s.client.From(supabaseConversationsTable).
			Insert(supabaseConversationRow{ConvID: id}, true, "conv_id", "minimal", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to ensure conversation: %w", err)
		}
		s.cache.add(id, s.cacheTTL)
	}

	row := supabaseTurnRow{
		ConvID:     id,
		Role:       turn.Role,
		Content:    turn.Content,
		TokenCount: turn.TokenCount,
	}
	_, _, err := s.client.From(supabaseTurnsTable).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Get implements transcript.Store.
// Rows are fetched newest first so the PostgREST row cap and the turn limit
// both cut the oldest turns.
func (s *SupabaseStore) Get(ctx context.Context, id string) ([]chat.Turn, error) {
	query := s.client.From(supabaseTurnsTable).
		Select("seq,conv_id,role,content,token_count", "", false).
		Eq("conv_id", id).
		Order("seq", &postgrest.OrderOpts{Ascending: false})
	if s.limits.MaxTurns > 0 {
		query = query.Limit(s.limits.MaxTurns, "")
	}

	var rows []supabaseTurnRow
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}

	turns, err := turnsFromRows(rows)
	if err != nil {
		return nil, err
	}
	return s.limits.Apply(turns), nil
}

// Clear implements transcript.Store.
func (s *SupabaseStore) Clear(ctx context.Context, id string) error {
	_, _, err := s.client.From(supabaseTurnsTable).
		Delete("minimal", "").
		Eq("conv_id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

// Close implements transcript.Store.
func (s *SupabaseStore) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// turnsFromRows orders rows by ascending sequence and converts them to turns.
func turnsFromRows(rows []supabaseTurnRow) ([]chat.Turn, error) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	turns := make([]chat.Turn, 0, len(rows))
	for _, r := range rows {
		if !r.Role.Valid() {
			return nil, fmt.Errorf("turn %d: %w: %q", r.Seq, chat.ErrUnknownRole, r.Role)
		}
		turns = append(turns, chat.Turn{
			Role:       r.Role,
			Content:    r.Content,
			TokenCount: r.TokenCount,
		})
	}
	return turns, nil
}

// get reports whether the ID is cached and not expired.
func (c *existenceCache) get(key string, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.byID[key]; ok {
		if now.Before(e.expiresAt) {
			return e.value
		}
	}
	return false
}

// add caches an ID as existing.
func (c *existenceCache) add(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[key] = &cacheEntry[bool]{
		value:     true,
		expiresAt: time.Now().Add(ttl),
	}
}

// Compile-time check that SupabaseStore implements transcript.Store
var _ transcript.Store = (*SupabaseStore)(nil)
