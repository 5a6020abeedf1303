// Package analysis builds AI analysis requests for extracted legal documents
// and dispatches them to the selected provider.
package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jusia/internal/budget"
	"github.com/hyperifyio/jusia/internal/llm"
)

// DefaultPrompt is the legal-advisor prompt used when none is supplied.
const DefaultPrompt = `Você é um assessor jurídico especializado. Analise este processo judicial e forneça:

1. RESUMO DO CASO: Sintetize o objeto da ação, partes envolvidas e fase processual.

2. ANÁLISE JURÍDICA: Identifique questões jurídicas relevantes, legislação aplicável e jurisprudência pertinente.

3. SUGESTÃO DE DECISÃO: Forneça fundamentação jurídica completa para a decisão mais adequada.

4. PENDÊNCIAS E PRAZOS: Liste pendências processuais e prazos importantes a observar.

Formate sua resposta em tópicos organizados para facilitar a revisão judicial.`

// NoResponse stands in for a completion when the provider returned no text.
const NoResponse = "Sem resposta da API"

var (
	// ErrNoAPIKey is returned before any request when the provider needs a
	// key and none was given.
	ErrNoAPIKey = errors.New("API key required")
	// ErrNoContent is returned when there is no document text to analyze.
	ErrNoContent = errors.New("no document content to analyze")
)

// Request is one analysis of one document.
type Request struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Document string `json:"document"`
	// Source names where the document came from, for reports.
	Source string `json:"source,omitempty"`
}

// Result is a completed analysis.
type Result struct {
	Provider      string    `json:"provider"`
	Model         string    `json:"model,omitempty"`
	Prompt        string    `json:"prompt"`
	Source        string    `json:"source,omitempty"`
	DocumentChars int       `json:"documentChars"`
	Completion    string    `json:"completion"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Factory builds a provider by name. llm.New satisfies it.
type Factory func(ctx context.Context, name string, opts llm.Options) (llm.Provider, error)

// Analyzer turns a Request into a provider call. Fields of Defaults fill in
// whatever the Request leaves empty.
type Analyzer struct {
	DefaultProvider string
	Defaults        llm.Options
	New             Factory
	Now             func() time.Time
}

// Analyze validates req, sends it to the provider and returns the result.
// Provider errors are returned as is so their message reaches the caller
// unchanged.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	if name == "" {
		name = a.DefaultProvider
	}
	if name == "" {
		name = llm.OpenAI
	}
	opts := a.Defaults
	if strings.TrimSpace(req.APIKey) != "" {
		opts.APIKey = req.APIKey
	}
	if llm.RequiresAPIKey(name) && strings.TrimSpace(opts.APIKey) == "" {
		return Result{}, ErrNoAPIKey
	}
	if strings.TrimSpace(req.Document) == "" {
		return Result{}, ErrNoContent
	}
	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}

	factory := a.New
	if factory == nil {
		factory = llm.New
	}
	provider, err := factory(ctx, name, opts)
	if err != nil {
		return Result{}, err
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}
	model := req.Model
	if model == "" {
		model = opts.Model
	}
	if model == "" {
		model = provider.DefaultModel()
	}

	log.Debug().Str("provider", name).Str("model", model).Int("chars", len(req.Document)).Msg("analysis request")
	if est := budget.Check(model, llm.MaxTokens, prompt, req.Document); !est.Fits {
		log.Warn().Str("model", model).Int("tokens", est.PromptTokens).Int("limit", est.Limit).Msg("document may exceed the model context window")
	}
	completion, err := provider.Complete(ctx, llm.Request{Prompt: prompt, Document: req.Document, Model: model})
	if errors.Is(err, llm.ErrEmptyCompletion) {
		completion, err = NoResponse, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		Provider:      name,
		Model:         model,
		Prompt:        prompt,
		Source:        req.Source,
		DocumentChars: len([]rune(req.Document)),
		Completion:    completion,
		CreatedAt:     a.now(),
	}, nil
}

func (a *Analyzer) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}
