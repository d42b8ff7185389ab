package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// googleProvider speaks the Gemini generateContent protocol directly; there
// is no OpenAI-compatible endpoint for it.
type googleProvider struct {
	baseURL    string
	httpClient *http.Client
}

func newGoogleProvider(baseURL string, httpClient *http.Client) *googleProvider {
	return &googleProvider{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (p *googleProvider) Send(ctx context.Context, req *Request) (*Reply, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	payload := struct {
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
		Contents          []content `json:"contents"`
	}{}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			payload.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
		case "assistant":
			payload.Contents = append(payload.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			payload.Contents = append(payload.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, req.Model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		message := gjson.GetBytes(respBody, "error.message").String()
		if message == "" {
			message = fmt.Sprintf("google api error: HTTP %d", resp.StatusCode)
		}
		return nil, &TransportError{Message: message, StatusCode: resp.StatusCode}
	}

	text := gjson.GetBytes(respBody, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return nil, &TransportError{Message: "malformed response from provider", StatusCode: resp.StatusCode}
	}

	return &Reply{
		Role:    "assistant",
		Content: text.String(),
	}, nil
}
