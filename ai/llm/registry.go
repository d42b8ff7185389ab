package llm

import (
	"net/http"
	"strings"
)

// family binds a set of model-identifier prefixes to one provider.
type family struct {
	name     string
	prefixes []string
	provider Provider
}

// Registry maps model-identifier prefixes to providers. Adding a vendor
// means registering a new entry, not editing a branch chain.
type Registry struct {
	families []family
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds prefixes to a provider under a family name. Later
// registrations win no priority; the first matching prefix is used.
func (r *Registry) Register(name string, provider Provider, prefixes ...string) {
	r.families = append(r.families, family{
		name:     name,
		prefixes: prefixes,
		provider: provider,
	})
}

// Resolve returns the provider and family name for a model identifier.
func (r *Registry) Resolve(model string) (Provider, string, bool) {
	for _, f := range r.families {
		for _, prefix := range f.prefixes {
			if strings.HasPrefix(model, prefix) {
				return f.provider, f.name, true
			}
		}
	}
	return nil, "", false
}

// Families returns the registered family names, in registration order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.families))
	for _, f := range r.families {
		names = append(names, f.name)
	}
	return names
}

// Default vendor endpoints. Only the OpenAI-compatible ones are overridable
// per provider instance; Google and Cohere use their own wire shapes.
const (
	openAIBaseURL  = "https://api.openai.com/v1"
	xaiBaseURL     = "https://api.xai.com/v1"
	mistralBaseURL = "https://api.mistral.ai/v1"
	googleBaseURL  = "https://generativelanguage.googleapis.com/v1beta/models"
	cohereBaseURL  = "https://api.cohere.ai/v1/chat"
)

func registerDefaultFamilies(registry *Registry, httpClient *http.Client) {
	registry.Register("openai",
		newOpenAICompatProvider("", 0, httpClient), "gpt")
	registry.Register("anthropic",
		newAnthropicProvider(httpClient), "claude")
	registry.Register("google",
		newGoogleProvider(googleBaseURL, httpClient), "gemini")
	registry.Register("xai",
		newOpenAICompatProvider(xaiBaseURL, 0, httpClient), "grok")
	registry.Register("cohere",
		newCohereProvider(cohereBaseURL, httpClient), "cohere")
	registry.Register("mistral",
		newOpenAICompatProvider(mistralBaseURL, 1000, httpClient),
		"mistral", "pixtral", "open-mistral", "open-codestral", "mathstral")
}
