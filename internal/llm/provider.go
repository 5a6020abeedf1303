// Package llm sends a prompt and a document to one of the supported model
// providers and returns the completion text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Provider names.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Manus     = "manus"
	Lovable   = "lovable"
	Vertex    = "vertex"
)

// Sampling settings shared by every provider contract.
const (
	Temperature = 0.3
	MaxTokens   = 4000
)

// documentSeparator joins the prompt and the document for providers that
// take a single user turn.
const documentSeparator = "\n\nDocumento para análise:\n"

// ErrEmptyCompletion is returned when the provider answered without text.
var ErrEmptyCompletion = errors.New("provider returned no completion text")

// Request is one analysis call.
type Request struct {
	Prompt   string
	Document string
	// Model overrides the provider default when set.
	Model string
}

// Combined is the prompt followed by the document, as a single message.
func (r Request) Combined() string {
	return r.Prompt + documentSeparator + r.Document
}

// Provider is a model backend.
type Provider interface {
	Name() string
	// DefaultModel is the model used when Request.Model is empty.
	DefaultModel() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Client is the minimal interface needed to call an OpenAI-compatible chat
// model. *openai.Client satisfies it.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ProviderError is a non-2xx answer from a provider. Error returns the
// provider's own message unchanged.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string { return e.Message }

// Options configure New.
type Options struct {
	APIKey string
	Model  string
	// BaseURL replaces the provider's server root, for proxies and test
	// servers. Versioned API paths are appended to it.
	BaseURL string
	// HTTPClient is used by every HTTP provider. Nil means a default client.
	HTTPClient *http.Client

	VertexProject string
	VertexRegion  string
}

// Names lists the supported provider names in sorted order.
func Names() []string {
	names := []string{OpenAI, Anthropic, Gemini, Manus, Lovable, Vertex}
	sort.Strings(names)
	return names
}

// New builds the provider called name.
func New(ctx context.Context, name string, opts Options) (Provider, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OpenAI:
		return newChat(OpenAI, "gpt-4o", defaultString(opts.BaseURL, "https://api.openai.com") + "/v1", opts, httpClient), nil
	case Manus:
		return newChat(Manus, "manus-davi-12b", defaultString(opts.BaseURL, "https://api.manus.ai") + "/v1", opts, httpClient), nil
	case Anthropic:
		return &AnthropicProvider{
			APIKey:  opts.APIKey,
			Model:   opts.Model,
			BaseURL: defaultString(opts.BaseURL, "https://api.anthropic.com") + "/v1",
			HTTP:    httpClient,
		}, nil
	case Gemini:
		return &GeminiProvider{
			APIKey:  opts.APIKey,
			Model:   opts.Model,
			BaseURL: defaultString(opts.BaseURL, "https://generativelanguage.googleapis.com"),
			HTTP:    httpClient,
		}, nil
	case Lovable:
		return &LovableProvider{
			APIKey:  opts.APIKey,
			BaseURL: defaultString(opts.BaseURL, "https://api.lovable.dev") + "/v1",
			HTTP:    httpClient,
		}, nil
	case Vertex:
		p, err := NewVertex(ctx, opts.VertexProject, opts.VertexRegion, opts.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %q", name)
	}
}

// RequiresAPIKey reports whether the provider authenticates with an API key.
// Vertex uses Application Default Credentials.
func RequiresAPIKey(name string) bool {
	return !strings.EqualFold(strings.TrimSpace(name), Vertex)
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}

func modelOr(req, configured, def string) string {
	if strings.TrimSpace(req) != "" {
		return req
	}
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	return def
}
