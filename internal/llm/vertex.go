package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

const defaultVertexRegion = "us-central1"

// VertexProvider calls Gemini models through Vertex AI using Application
// Default Credentials.
type VertexProvider struct {
	Model  string
	client *genai.Client
}

// NewVertex connects to Vertex AI in project and region.
func NewVertex(ctx context.Context, project, region, model string) (*VertexProvider, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("vertex provider requires a project")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultVertexRegion
	}
	client, err := genai.NewClient(ctx, project, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexProvider{Model: model, client: client}, nil
}

func (p *VertexProvider) Name() string         { return Vertex }
func (p *VertexProvider) DefaultModel() string { return "gemini-1.5-pro" }

func (p *VertexProvider) Complete(ctx context.Context, req Request) (string, error) {
	model := p.client.GenerativeModel(modelOr(req.Model, p.Model, p.DefaultModel()))
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Prompt)}}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](Temperature),
		MaxOutputTokens: genai.Ptr[int32](MaxTokens),
	}
	resp, err := model.GenerateContent(ctx, genai.Text(req.Document))
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

// Close releases the Vertex AI client.
func (p *VertexProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
