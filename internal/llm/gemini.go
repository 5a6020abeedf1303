package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// GeminiProvider calls the Generative Language generateContent endpoint
// with the API key in the query string.
type GeminiProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Name() string         { return Gemini }
func (p *GeminiProvider) DefaultModel() string { return "gemini-pro" }

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	model := modelOr(req.Model, p.Model, p.DefaultModel())
	endpoint := p.BaseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(p.APIKey)
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Combined()}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     Temperature,
			MaxOutputTokens: MaxTokens,
		},
	}
	var resp geminiResponse
	if err := postJSON(ctx, p.HTTP, Gemini, endpoint, nil, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyCompletion
	}
	out := resp.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}
