// Package verify is the client for the security-verification backend. The
// backend orchestrates the verification workflows (threat modeling, SVA
// generation, property checks) and, when a query lacks required structured
// data, answers with a missing-inputs payload instead of a completion.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/svllm/svllm/ai/llm"
)

const statusMissingInputs = "missing_inputs"

// Client talks to the security-verification backend. It implements
// llm.Provider so the dispatcher can route requests through it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client against baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Send forwards the request, including any auxiliary data collected from a
// previous missing-inputs round, and normalizes the reply.
func (c *Client) Send(ctx context.Context, req *llm.Request) (*llm.Reply, error) {
	messages := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = wireMessage{Role: m.Role, Content: m.Content}
	}

	payload := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	// Auxiliary fields (design_spec text, vulnerability category, ...) are
	// forwarded verbatim at the top level, the shape the backend expects.
	for key, value := range req.Auxiliary {
		payload[key] = value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.TransportError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &llm.TransportError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &llm.TransportError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransportError{Message: err.Error(), StatusCode: resp.StatusCode}
	}

	// The missing-inputs signal can arrive on any status code; recognize it
	// before treating the response as a transport failure.
	if gjson.GetBytes(respBody, "status").String() == statusMissingInputs {
		return nil, parseMissingInputs(respBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := gjson.GetBytes(respBody, "message").String()
		if message == "" {
			message = fmt.Sprintf("backend error: HTTP %d", resp.StatusCode)
		}
		return nil, &llm.TransportError{Message: message, StatusCode: resp.StatusCode}
	}

	content := gjson.GetBytes(respBody, "content")
	if !content.Exists() {
		return nil, &llm.TransportError{Message: "malformed response from backend", StatusCode: resp.StatusCode}
	}

	return &llm.Reply{
		Role:    "assistant",
		Content: content.String(),
	}, nil
}

func parseMissingInputs(body []byte) *llm.MissingInputsError {
	required := map[string][]string{}
	gjson.GetBytes(body, "required_inputs").ForEach(func(intent, fields gjson.Result) bool {
		for _, field := range fields.Array() {
			required[intent.String()] = append(required[intent.String()], field.String())
		}
		return true
	})

	return &llm.MissingInputsError{
		RequiredInputs: required,
		Content:        gjson.GetBytes(body, "content").String(),
	}
}
