package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1000

// anthropicProvider is a thin wrapper around the official anthropic-sdk-go
// client.
type anthropicProvider struct {
	httpClient *http.Client
}

func newAnthropicProvider(httpClient *http.Client) *anthropicProvider {
	return &anthropicProvider{httpClient: httpClient}
}

func (p *anthropicProvider) Send(ctx context.Context, req *Request) (*Reply, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(req.APIKey),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0), // the dispatcher never retries
	)

	system, messages := splitSystem(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, normalizeAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Reply{
		Role:    "assistant",
		Content: sb.String(),
	}, nil
}

// splitSystem extracts the leading system instruction; the Messages API
// carries it as a top-level field, not a message.
func splitSystem(messages []Message) (string, []anthropic.MessageParam) {
	var system string
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = m.Content
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, converted
}

func normalizeAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &TransportError{
			Message:    apiErr.Error(),
			StatusCode: apiErr.StatusCode,
		}
	}
	return &TransportError{Message: err.Error()}
}
