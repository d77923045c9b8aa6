// Package chat holds the conversation model shared by the transcript stores,
// the session binder and the exchange orchestrator.
package chat

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// BlockKind discriminates the ContentBlock variants.
type BlockKind string

const (
	BlockKindText     BlockKind = "text"
	BlockKindDocument BlockKind = "document"
)

// ContentBlock is a single part of a Turn.
// Text blocks use Text; document blocks use MediaType and Data,
// where Data is the base64 encoding of the uploaded bytes.
type ContentBlock struct {
	Kind      BlockKind `json:"type"`
	Text      string    `json:"text,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Data      string    `json:"data,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockKindText, Text: text}
}

// NewDocumentBlock creates a document content block from already encoded data.
func NewDocumentBlock(mediaType, base64Data string) ContentBlock {
	return ContentBlock{Kind: BlockKindDocument, MediaType: mediaType, Data: base64Data}
}

// Turn represents a single conversation turn.
// Turns are never modified once appended to a transcript.
type Turn struct {
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	TokenCount int            `json:"token_count"` // Estimated tokens
}

// NewAssistantTurn wraps model output as an assistant turn.
func NewAssistantTurn(text string) Turn {
	return Turn{
		Role:       RoleAssistant,
		Content:    []ContentBlock{NewTextBlock(text)},
		TokenCount: EstimateTokens(text),
	}
}

// LastText returns the text of the last text block in the turn.
func (t Turn) LastText() (string, bool) {
	for i := len(t.Content) - 1; i >= 0; i-- {
		if t.Content[i].Kind == BlockKindText {
			return t.Content[i].Text, true
		}
	}
	return "", false
}

// Clone returns a copy of the turn whose content slice can be handed out.
func (t Turn) Clone() Turn {
	out := t
	if t.Content != nil {
		out.Content = make([]ContentBlock, len(t.Content))
		copy(out.Content, t.Content)
	}
	return out
}

// CloneTurns copies a transcript so callers cannot alias stored state.
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i := range turns {
		out[i] = turns[i].Clone()
	}
	return out
}
