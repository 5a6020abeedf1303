package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatProvider speaks the OpenAI chat completions contract: the prompt as
// the system message and the document as the user message.
type ChatProvider struct {
	name     string
	defModel string
	Model    string
	Client   Client
	// fallback is used when an error body carries no message.
	fallback string
}

func newChat(name, defModel, baseURL string, opts Options, httpClient *http.Client) *ChatProvider {
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient
	return &ChatProvider{
		name:     name,
		defModel: defModel,
		Model:    opts.Model,
		Client:   openai.NewClientWithConfig(cfg),
		fallback: fallbackMessage(name),
	}
}

func (p *ChatProvider) Name() string         { return p.name }
func (p *ChatProvider) DefaultModel() string { return p.defModel }

func (p *ChatProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelOr(req.Model, p.Model, p.defModel),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Prompt},
			{Role: openai.ChatMessageRoleUser, Content: req.Document},
		},
		Temperature: Temperature,
	})
	if err != nil {
		return "", p.convertError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	out := resp.Choices[0].Message.Content
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

func (p *ChatProvider) convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if strings.TrimSpace(msg) == "" {
			msg = p.fallback
		}
		return &ProviderError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: msg}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: p.fallback}
	}
	return err
}
