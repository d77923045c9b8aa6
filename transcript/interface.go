package transcript

import (
	"context"

	"github.com/creastat/chat"
)

// Store defines the interface for conversation transcript storage.
// Each call is atomic on its own; callers racing on the same conversation
// may interleave appends.
type Store interface {
	// Create generates a fresh conversation ID and installs an empty transcript.
	Create(ctx context.Context) (string, error)

	// Exists reports whether the store knows the conversation ID.
	Exists(ctx context.Context, id string) (bool, error)

	// Append appends a turn to the transcript, creating the conversation first
	// if the ID is unknown.
	Append(ctx context.Context, id string, turn chat.Turn) error

	// Get returns a copy of the transcript after applying the store limits.
	// An unknown ID yields an empty transcript, not an error.
	Get(ctx context.Context, id string) ([]chat.Turn, error)

	// Clear empties the transcript while keeping the ID known.
	// It is a no-op for unknown IDs.
	Clear(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
