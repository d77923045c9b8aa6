// Package anthropic is a minimal client for the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/creastat/chat"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultTimeout bounds a whole request, response body included.
	DefaultTimeout = 10 * time.Minute

	defaultAPIVersion = "2023-06-01"
)

// Client represents the Anthropic API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, e.g. for a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithTimeout sets the overall request timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		apiKey:     apiKey,
		APIVersion: defaultAPIVersion,
		BaseURL:    DefaultBaseURL,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Helper function to set necessary headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// SendMessage sends a message request and returns the response.
// Non-200 responses are returned as an error carrying the API's message.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: read response")
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errorResp); unmarshalErr != nil || errorResp.Error.Message == "" {
			return nil, fmt.Errorf("anthropic: unexpected status %d", resp.StatusCode)
		}
		return nil, errors.New(errorResp.Error.Message)
	}

	var messageResp MessageResponse
	if unmarshalErr := json.Unmarshal(respBody, &messageResp); unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "anthropic: decode response")
	}

	return &messageResp, nil
}

// Complete implements chat.Model over the Messages API.
func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.SendMessage(ctx, &MessageRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  MessagesFromTurns(req.Turns),
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("model", resp.Model).
		Str("stop_reason", resp.StopReason).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("message completed")

	text, ok := resp.FirstText()
	if !ok {
		return "", errors.New("anthropic: response contained no text")
	}
	return text, nil
}

var _ chat.Model = (*Client)(nil)
