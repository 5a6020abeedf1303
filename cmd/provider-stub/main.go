// Command provider-stub serves canned answers for every LLM provider contract
// and a Basic-auth document repository, for local runs of jusia against
// --llm.base and a repository endpoint without network access.
package main

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const reply = "1. RESUMO DO CASO\n- Stub response.\n\n2. ANÁLISE JURÍDICA\n- Nenhuma.\n\n3. SUGESTÃO DE DECISÃO\n- Nenhuma.\n\n4. PENDÊNCIAS E PRAZOS\n- Nenhuma."

type stub struct {
	model    string
	apiKey   string
	user     string
	password string
	docs     string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	s := &stub{
		model:    envOr("MODEL_ID", "test-model"),
		apiKey:   os.Getenv("API_KEY"),
		user:     envOr("REPO_USER", "user"),
		password: envOr("REPO_PASSWORD", "password"),
		docs:     os.Getenv("DOCS_DIR"),
	}
	addr := envOr("ADDR", ":8081")

	log.Info().Str("addr", addr).Str("model", s.model).Msg("provider-stub listening")
	if err := http.ListenAndServe(addr, s.routes()); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (s *stub) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.authorized(s.chat))
	mux.HandleFunc("POST /v1/messages", s.authorized(s.messages))
	mux.HandleFunc("POST /v1/completions", s.authorized(s.completions))
	mux.HandleFunc("POST /v1beta/models/{model}", s.generateContent)
	mux.HandleFunc("GET /documents/{hash}", s.document)
	return mux
}

// authorized checks the Bearer or x-api-key header when API_KEY is set.
func (s *stub) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" {
				got = r.Header.Get("x-api-key")
			}
			if got != s.apiKey {
				writeError(w, http.StatusUnauthorized, "Incorrect API key provided")
				return
			}
		}
		next(w, r)
	}
}

func (s *stub) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) < 2 {
		writeError(w, http.StatusBadRequest, "expected system and user messages")
		return
	}
	writeJSON(w, map[string]any{
		"id":     "chatcmpl-stub",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"},
		},
	})
}

func (s *stub) messages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MaxTokens <= 0 {
		writeError(w, http.StatusBadRequest, "max_tokens: field required")
		return
	}
	writeJSON(w, map[string]any{
		"type":    "message",
		"model":   req.Model,
		"content": []map[string]string{{"type": "text", "text": reply}},
	})
}

func (s *stub) completions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	writeJSON(w, map[string]string{"completion": reply})
}

// generateContent serves /v1beta/models/{model}:generateContent?key=...
func (s *stub) generateContent(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.PathValue("model"), ":generateContent") {
		http.NotFound(w, r)
		return
	}
	if s.apiKey != "" && r.URL.Query().Get("key") != s.apiKey {
		writeError(w, http.StatusBadRequest, "API key not valid. Please pass a valid API key.")
		return
	}
	writeJSON(w, map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"role": "model", "parts": []map[string]string{{"text": reply}}}},
		},
	})
}

// document serves DOCS_DIR/<hash> (or a fixed text) behind Basic auth.
// Files ending in .pdf are served as application/pdf.
func (s *stub) document(w http.ResponseWriter, r *http.Request) {
	u, p, ok := r.BasicAuth()
	if !ok || u != s.user || p != s.password {
		w.Header().Set("WWW-Authenticate", `Basic realm="documents"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	hash := r.PathValue("hash")
	if s.docs == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Documento " + hash + ": texto de exemplo."))
		return
	}
	root, err := os.OpenRoot(s.docs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer root.Close()
	for _, name := range []string{hash, hash + ".pdf", hash + ".txt"} {
		b, err := fs.ReadFile(root.FS(), name)
		if err != nil {
			continue
		}
		ct := "text/plain; charset=utf-8"
		if strings.HasSuffix(name, ".pdf") {
			ct = "application/pdf"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = w.Write(b)
		return
	}
	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": msg}})
}
