package anthropic

import "github.com/creastat/chat"

// MessageRequest represents the Messages API request payload.
type MessageRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Stream    bool      `json:"stream"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content represents a single block of content, either text or a document.
type Content struct {
	Type   string          `json:"type"`
	Text   *string         `json:"text,omitempty"`
	Source *DocumentSource `json:"source,omitempty"`
}

// DocumentSource carries base64-encoded file data.
type DocumentSource struct {
	Type      string `json:"type"`       // always "base64"
	MediaType string `json:"media_type"` // e.g., "application/pdf"
	Data      string `json:"data"`
}

// MessageResponse represents the Messages API response payload.
type MessageResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Role         string    `json:"role"`
	Content      []Content `json:"content"`
	Model        string    `json:"model"`
	StopReason   string    `json:"stop_reason,omitempty"`
	StopSequence string    `json:"stop_sequence,omitempty"`
	Usage        Usage     `json:"usage"`
}

// Usage represents the billing and rate-limit usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewTextContent creates a new text content block.
func NewTextContent(text string) Content {
	return Content{
		Type: "text",
		Text: &text,
	}
}

// NewDocumentContent creates a new document content block with base64-encoded data.
func NewDocumentContent(mediaType, base64Data string) Content {
	return Content{
		Type: "document",
		Source: &DocumentSource{
			Type:      "base64",
			MediaType: mediaType,
			Data:      base64Data,
		},
	}
}

// MessagesFromTurns converts a transcript to API messages, keeping order.
func MessagesFromTurns(turns []chat.Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		content := make([]Content, 0, len(t.Content))
		for _, b := range t.Content {
			switch b.Kind {
			case chat.BlockKindDocument:
				content = append(content, NewDocumentContent(b.MediaType, b.Data))
			default:
				content = append(content, NewTextContent(b.Text))
			}
		}
		msgs = append(msgs, Message{Role: string(t.Role), Content: content})
	}
	return msgs
}

// FirstText returns the text of the first text block of the response.
func (r *MessageResponse) FirstText() (string, bool) {
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != nil {
			return *c.Text, true
		}
	}
	return "", false
}
