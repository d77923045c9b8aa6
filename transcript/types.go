package transcript

import "github.com/creastat/chat"

// StoreType represents the type of transcript store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeSupabase StoreType = "supabase"
)

// Limits bounds how much history a conversation keeps.
// Zero disables a limit.
type Limits struct {
	MaxTurns  int
	MaxTokens int
}

// DefaultLimits keeps the most recent 200 turns and does not cap tokens.
var DefaultLimits = Limits{MaxTurns: 200}

// Unbounded reports whether no limit applies.
func (l Limits) Unbounded() bool {
	return l.MaxTurns <= 0 && l.MaxTokens <= 0
}

// Apply truncates a transcript to the limits.
func (l Limits) Apply(turns []chat.Turn) []chat.Turn {
	return chat.TruncateHistory(turns, l.MaxTokens, l.MaxTurns)
}
