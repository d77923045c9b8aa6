package chat

import "context"

// CompletionRequest is one completion call over a full transcript.
type CompletionRequest struct {
	Model     string
	MaxTokens int
	Turns     []Turn
}

// Model is the external language model producing assistant text.
type Model interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
