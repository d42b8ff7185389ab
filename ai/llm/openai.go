package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// openAICompatProvider serves every vendor speaking the OpenAI chat
// completions protocol (OpenAI itself, xAI, Mistral); only the base URL
// differs.
type openAICompatProvider struct {
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

func newOpenAICompatProvider(baseURL string, maxTokens int, httpClient *http.Client) *openAICompatProvider {
	return &openAICompatProvider{
		baseURL:    baseURL,
		maxTokens:  maxTokens,
		httpClient: httpClient,
	}
}

func (p *openAICompatProvider) Send(ctx context.Context, req *Request) (*Reply, error) {
	clientConfig := openai.DefaultConfig(req.APIKey)
	if p.baseURL != "" {
		clientConfig.BaseURL = p.baseURL
	}
	clientConfig.HTTPClient = p.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: 0.7,
		Messages:    convertMessages(req.Messages),
	}
	if p.maxTokens > 0 {
		chatReq.MaxTokens = p.maxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, normalizeOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &TransportError{Message: "empty response from provider"}
	}

	return &Reply{
		Role:    "assistant",
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func normalizeOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{
			Message:    apiErr.Message,
			StatusCode: apiErr.HTTPStatusCode,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{
			Message:    reqErr.Error(),
			StatusCode: reqErr.HTTPStatusCode,
		}
	}

	return &TransportError{Message: err.Error()}
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "system":
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			}
		case "assistant":
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
		default:
			converted[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			}
		}
	}
	return converted
}
