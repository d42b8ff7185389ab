package llm

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/svllm/svllm/internal/metrics"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Request is the provider-agnostic chat request. Messages are ordered oldest
// first and carry only user/assistant roles; the dispatcher prepends the
// system instruction itself.
type Request struct {
	Messages []Message
	Model    string
	APIKey   string
	// Auxiliary carries free-form key/value data supplied in response to a
	// missing-inputs signal (uploaded file text, a selected category). It is
	// forwarded verbatim to the verification backend.
	Auxiliary map[string]string
}

// Reply is the normalized provider response.
type Reply struct {
	Role    string
	Content string
}

// systemPrompt is prepended to every outbound request. It is not user
// visible and never stored.
const systemPrompt = "You are SV-LLM, a security-focused AI assistant. " +
	"Analyze all queries with a security mindset, identifying potential vulnerabilities, " +
	"risks, and best practices. Provide detailed, actionable security advice and recommendations."

// messageTokenEstimate is the crude per-message token estimate used for
// context-window truncation: the last contextWindow/200 messages are kept.
const messageTokenEstimate = 200

// Provider shapes a request for one vendor family and performs the call.
type Provider interface {
	Send(ctx context.Context, req *Request) (*Reply, error)
}

// Config represents dispatcher configuration.
type Config struct {
	// ContextWindow is the context token budget per request.
	ContextWindow int
	// Timeout bounds each outbound request. Expiry surfaces as a normal
	// transport failure, not a distinct state.
	Timeout time.Duration
}

// Dispatcher translates abstract chat requests into provider calls and
// normalizes the results. It performs no retries.
type Dispatcher struct {
	registry      *Registry
	backend       Provider
	contextWindow int
}

// NewDispatcher creates a dispatcher with all built-in provider families
// registered.
func NewDispatcher(cfg *Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := newHTTPClient(timeout)

	contextWindow := cfg.ContextWindow
	if contextWindow <= 0 {
		contextWindow = 4096
	}

	registry := NewRegistry()
	registerDefaultFamilies(registry, httpClient)

	return &Dispatcher{
		registry:      registry,
		contextWindow: contextWindow,
	}
}

// Registry exposes the family registry so callers can register additional
// providers.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// SetBackend installs the security-verification backend collaborator. When
// set, every request with a recognized model identifier is routed through
// the backend, which proxies to the vendors and may signal missing inputs.
func (d *Dispatcher) SetBackend(backend Provider) {
	d.backend = backend
}

// Dispatch sends the request to the provider selected by the model
// identifier and returns the normalized reply.
//
// The history is truncated to roughly the last contextWindow/200 messages
// (take-from-the-end) and the synthetic system instruction is prepended
// before transmission.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	provider, familyName, ok := d.registry.Resolve(req.Model)
	if !ok {
		return nil, &UnsupportedModelError{Model: req.Model}
	}

	if d.backend != nil {
		provider = d.backend
		familyName = "backend"
	}

	shaped := *req
	shaped.Messages = prependSystem(truncateHistory(req.Messages, d.contextWindow))

	slog.Debug("llm: dispatching request",
		"family", familyName,
		"model", req.Model,
		"messages", len(shaped.Messages),
	)

	start := time.Now()
	reply, err := provider.Send(ctx, &shaped)
	metrics.ObserveProviderRequest(familyName, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if reply.Role == "" {
		reply.Role = "assistant"
	}
	return reply, nil
}

// truncateHistory keeps the most recent floor(budget/200) messages. This is
// a crude token-budget heuristic, not an exact tokenizer.
func truncateHistory(messages []Message, budget int) []Message {
	keep := budget / messageTokenEstimate
	if keep < 1 {
		keep = 1
	}
	if len(messages) <= keep {
		return messages
	}
	return messages[len(messages)-keep:]
}

func prependSystem(messages []Message) []Message {
	enhanced := make([]Message, 0, len(messages)+1)
	enhanced = append(enhanced, Message{Role: "system", Content: systemPrompt})
	enhanced = append(enhanced, messages...)
	return enhanced
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
