package llm

import (
	"context"
	"net/http"
	"strings"
)

// LovableProvider posts a single combined prompt and reads "completion".
// The endpoint takes no model parameter.
type LovableProvider struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type lovableRequest struct {
	Prompt string `json:"prompt"`
}

type lovableResponse struct {
	Completion string `json:"completion"`
}

func (p *LovableProvider) Name() string         { return Lovable }
func (p *LovableProvider) DefaultModel() string { return "" }

func (p *LovableProvider) Complete(ctx context.Context, req Request) (string, error) {
	var resp lovableResponse
	if err := postJSON(ctx, p.HTTP, Lovable, p.BaseURL+"/completions", bearer(p.APIKey), lovableRequest{Prompt: req.Combined()}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Completion) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Completion, nil
}
