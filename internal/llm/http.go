package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errorBody is the error envelope shared by every HTTP provider.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// fallbackMessage is reported when an error response has no message.
func fallbackMessage(provider string) string {
	switch provider {
	case OpenAI:
		return "Erro na API da OpenAI"
	case Anthropic:
		return "Erro na API da Anthropic"
	case Gemini:
		return "Erro na API do Gemini"
	case Manus:
		return "Erro na API da Manus.ai"
	case Lovable:
		return "Erro na API da Lovable"
	default:
		return fmt.Sprintf("Erro na API (%s)", provider)
	}
}

// postJSON sends body to url and decodes a 2xx answer into out. Non-2xx
// answers become a *ProviderError carrying error.message.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fallbackMessage(provider)
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && strings.TrimSpace(eb.Error.Message) != "" {
			msg = eb.Error.Message
		}
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", provider, err)
	}
	return nil
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}
