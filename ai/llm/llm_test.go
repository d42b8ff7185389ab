package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	requests []*Request
	reply    *Reply
	err      error
}

func (p *recordingProvider) Send(_ context.Context, req *Request) (*Reply, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if p.reply != nil {
		return p.reply, nil
	}
	return &Reply{Role: "assistant", Content: "ok"}, nil
}

func TestResolveModelFamilies(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})

	tests := []struct {
		model  string
		family string
	}{
		{"gpt-4o-2024-11-20", "openai"},
		{"gpt-3.5-turbo", "openai"},
		{"claude-3-5-sonnet-20241022", "anthropic"},
		{"gemini-1.5-pro", "google"},
		{"grok-2", "xai"},
		{"cohere", "cohere"},
		{"cohere-command-r", "cohere"},
		{"mistral-large-latest", "mistral"},
		{"pixtral-12b", "mistral"},
		{"open-mistral-nemo", "mistral"},
		{"open-codestral-mamba", "mistral"},
		{"mathstral-7b", "mistral"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, family, ok := dispatcher.Registry().Resolve(tt.model)
			require.True(t, ok)
			require.Equal(t, tt.family, family)
		})
	}
}

func TestDispatchUnsupportedModel(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})

	_, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "llama-3-70b",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var unsupported *UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "llama-3-70b", unsupported.Model)
}

func TestDispatchPrependsSystemPrompt(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})
	provider := &recordingProvider{}
	dispatcher.Registry().Register("test", provider, "test-model")

	_, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	require.Len(t, provider.requests, 1)
	sent := provider.requests[0].Messages
	require.Len(t, sent, 2)
	require.Equal(t, "system", sent[0].Role)
	require.Contains(t, sent[0].Content, "SV-LLM")
	require.Equal(t, "user", sent[1].Role)
}

func TestDispatchTruncatesFromTheEnd(t *testing.T) {
	// Budget 4096 keeps the last 20 messages.
	dispatcher := NewDispatcher(&Config{ContextWindow: 4096})
	provider := &recordingProvider{}
	dispatcher.Registry().Register("test", provider, "test-model")

	messages := make([]Message, 50)
	for i := range messages {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		messages[i] = Message{Role: role, Content: fmt.Sprintf("message %d", i)}
	}

	_, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "test-model",
		Messages: messages,
	})
	require.NoError(t, err)

	sent := provider.requests[0].Messages
	require.Len(t, sent, 21) // system + 4096/200 most recent
	require.Equal(t, "message 30", sent[1].Content)
	require.Equal(t, "message 49", sent[len(sent)-1].Content)
}

func TestTruncateHistoryKeepsAtLeastOne(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
	}
	kept := truncateHistory(messages, 100) // budget below one message estimate
	require.Len(t, kept, 1)
	require.Equal(t, "second", kept[0].Content)
}

func TestTruncateHistoryShortConversationUntouched(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "only"},
	}
	kept := truncateHistory(messages, 4096)
	require.Len(t, kept, 1)
}

func TestDispatchRoutesThroughBackend(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})
	backend := &recordingProvider{reply: &Reply{Role: "assistant", Content: "from backend"}}
	dispatcher.SetBackend(backend)

	reply, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "gpt-4o-2024-11-20",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "from backend", reply.Content)
	require.Len(t, backend.requests, 1)
}

func TestDispatchBackendStillRejectsUnknownModels(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})
	backend := &recordingProvider{}
	dispatcher.SetBackend(backend)

	_, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "llama-3-70b",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var unsupported *UnsupportedModelError
	require.ErrorAs(t, err, &unsupported)
	require.Empty(t, backend.requests)
}

func TestDispatchFillsAssistantRole(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})
	provider := &recordingProvider{reply: &Reply{Content: "bare content"}}
	dispatcher.Registry().Register("test", provider, "test-model")

	reply, err := dispatcher.Dispatch(context.Background(), &Request{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "assistant", reply.Role)
}

func TestNewDispatcherDefaults(t *testing.T) {
	dispatcher := NewDispatcher(&Config{})
	require.Equal(t, 4096, dispatcher.contextWindow)
	require.Equal(t,
		[]string{"openai", "anthropic", "google", "xai", "cohere", "mistral"},
		dispatcher.Registry().Families())
}

func TestNewHTTPClientTimeout(t *testing.T) {
	client := newHTTPClient(45 * time.Second)
	require.Equal(t, 45*time.Second, client.Timeout)
}

func TestCohereModelName(t *testing.T) {
	require.Equal(t, "command", cohereModelName("cohere"))
	require.Equal(t, "command-r", cohereModelName("cohere-command-r"))
}
