package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// cohereProvider speaks the Cohere chat protocol: the latest user message is
// the query, prior turns travel as chat_history with USER/CHATBOT roles, and
// the system instruction becomes the preamble.
type cohereProvider struct {
	baseURL    string
	httpClient *http.Client
}

func newCohereProvider(baseURL string, httpClient *http.Client) *cohereProvider {
	return &cohereProvider{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (p *cohereProvider) Send(ctx context.Context, req *Request) (*Reply, error) {
	lastUser := -1
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = i
			break
		}
	}
	if lastUser == -1 {
		return nil, &TransportError{Message: "no user message found"}
	}

	type historyEntry struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	}

	var history []historyEntry
	var preamble string
	for i, m := range req.Messages {
		switch {
		case m.Role == "system":
			preamble = m.Content
		case m.Role == "user" && i != lastUser:
			history = append(history, historyEntry{Role: "USER", Message: m.Content})
		case m.Role == "assistant":
			history = append(history, historyEntry{Role: "CHATBOT", Message: m.Content})
		}
	}

	payload := map[string]any{
		"model":       cohereModelName(req.Model),
		"message":     req.Messages[lastUser].Content,
		"temperature": 0.7,
	}
	if len(history) > 0 {
		payload["chat_history"] = history
	}
	if preamble != "" {
		payload["preamble"] = preamble
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), StatusCode: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		message := gjson.GetBytes(respBody, "message").String()
		if message == "" {
			message = fmt.Sprintf("cohere api error: HTTP %d", resp.StatusCode)
		}
		return nil, &TransportError{Message: message, StatusCode: resp.StatusCode}
	}

	text := gjson.GetBytes(respBody, "text")
	if !text.Exists() {
		return nil, &TransportError{Message: "malformed response from provider", StatusCode: resp.StatusCode}
	}

	return &Reply{
		Role:    "assistant",
		Content: text.String(),
	}, nil
}

// cohereModelName maps the client-facing identifier to the wire model name:
// the bare "cohere" selects "command", otherwise the "cohere-" prefix is
// stripped.
func cohereModelName(model string) string {
	if model == "cohere" {
		return "command"
	}
	return strings.TrimPrefix(model, "cohere-")
}
