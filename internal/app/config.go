package app

import "time"

// Defaults applied after flags, config file and environment.
const (
	DefaultProvider     = "openai"
	DefaultHTTPTimeout  = 60 * time.Second
	DefaultConcurrency  = 4
	DefaultVertexRegion = "us-central1"
	DefaultUserAgent    = "jusia/1.0 (+https://github.com/hyperifyio/jusia)"
)

// Config holds runtime configuration for the application.
type Config struct {
	ConfigPath string

	// LLM
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string
	Prompt      string
	PromptFile  string

	// Vertex AI
	VertexProject string
	VertexRegion  string

	// Store
	StoreDir         string
	StoreStrictPerms bool

	// Browser. UseBrowser loads URLs in Chrome instead of plain HTTP.
	BrowserControlURL string
	BrowserShow       bool
	UseBrowser        bool
	ProxyURL          string

	// HTTP
	HTTPTimeout time.Duration
	UserAgent   string

	Concurrency int
	Verbose     bool
}

// ApplyDefaults fills whatever is still unset.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if trim(cfg.LLMProvider) == "" {
		cfg.LLMProvider = DefaultProvider
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if trim(cfg.VertexRegion) == "" {
		cfg.VertexRegion = DefaultVertexRegion
	}
	if trim(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
}
