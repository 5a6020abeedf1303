package llm

import (
	"context"
	"net/http"
	"strings"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicProvider calls the Messages API with the prompt and document in
// one user turn.
type AnthropicProvider struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *AnthropicProvider) Name() string         { return Anthropic }
func (p *AnthropicProvider) DefaultModel() string { return "claude-3-opus-20240229" }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	body := anthropicRequest{
		Model:     modelOr(req.Model, p.Model, p.DefaultModel()),
		Messages:  []anthropicMessage{{Role: "user", Content: req.Combined()}},
		MaxTokens: MaxTokens,
	}
	headers := map[string]string{
		"x-api-key":         p.APIKey,
		"anthropic-version": anthropicAPIVersion,
	}
	var resp anthropicResponse
	if err := postJSON(ctx, p.HTTP, Anthropic, p.BaseURL+"/messages", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Content[0].Text, nil
}
