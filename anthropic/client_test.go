package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/creastat/chat"
	"github.com/stretchr/testify/require"
)

func TestComplete_SendsTranscript(t *testing.T) {
	var got MessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"Hi there"}],"usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL+"/"))
	user := chat.BuildUserTurn("Summarize", []chat.Upload{{Filename: "a.pdf", Data: []byte("%PDF")}})

	text, err := c.Complete(context.Background(), chat.CompletionRequest{
		Model:     "claude-3-7-sonnet-20250219",
		MaxTokens: 4000,
		Turns:     []chat.Turn{user},
	})
	require.NoError(t, err)
	require.Equal(t, "Hi there", text)

	require.Equal(t, "claude-3-7-sonnet-20250219", got.Model)
	require.Equal(t, 4000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	msg := got.Messages[0]
	require.Equal(t, "user", msg.Role)
	require.Len(t, msg.Content, 2)

	require.Equal(t, "document", msg.Content[0].Type)
	require.NotNil(t, msg.Content[0].Source)
	require.Equal(t, "base64", msg.Content[0].Source.Type)
	require.Equal(t, "application/pdf", msg.Content[0].Source.MediaType)
	require.Equal(t, "JVBERg==", msg.Content[0].Source.Data)

	require.Equal(t, "text", msg.Content[1].Type)
	require.NotNil(t, msg.Content[1].Text)
	require.Equal(t, "Summarize", *msg.Content[1].Text)
}

func TestComplete_APIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), chat.CompletionRequest{
		Model:     "claude-3-7-sonnet-20250219",
		MaxTokens: 10,
		Turns:     []chat.Turn{chat.BuildUserTurn("Hello", nil)},
	})
	require.EqualError(t, err, "invalid x-api-key")
}

func TestComplete_UnparseableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), chat.CompletionRequest{Turns: []chat.Turn{chat.BuildUserTurn("x", nil)}})
	require.EqualError(t, err, "anthropic: unexpected status 502")
}

func TestComplete_NoTextBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), chat.CompletionRequest{Turns: []chat.Turn{chat.BuildUserTurn("x", nil)}})
	require.Error(t, err)
}

func TestMessagesFromTurns_KeepsOrderAndRoles(t *testing.T) {
	turns := []chat.Turn{
		chat.BuildUserTurn("Hello", nil),
		chat.NewAssistantTurn("Hi"),
		chat.BuildUserTurn("Again", nil),
	}
	msgs := MessagesFromTurns(turns)
	require.Len(t, msgs, 3)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "assistant", msgs[1].Role)
	require.Equal(t, "Hi", *msgs[1].Content[0].Text)
	require.Equal(t, "user", msgs[2].Role)
}
