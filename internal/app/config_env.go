package app

import (
	"os"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	setString := func(dst *string, envKey string) {
		if trim(*dst) == "" {
			*dst = trim(os.Getenv(envKey))
		}
	}
	setString(&cfg.LLMProvider, "LLM_PROVIDER")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.StoreDir, "STORE_DIR")
	setString(&cfg.BrowserControlURL, "BROWSER_CONTROL_URL")
	setString(&cfg.VertexProject, "VERTEX_PROJECT")
	setString(&cfg.VertexRegion, "VERTEX_REGION")

	if cfg.HTTPTimeout == 0 {
		if s := os.Getenv("HTTP_TIMEOUT"); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				cfg.HTTPTimeout = d
			}
		}
	}

	// BROWSER_HEADLESS=false shows the browser window.
	if !cfg.BrowserShow {
		if v, ok := parseBool(os.Getenv("BROWSER_HEADLESS")); ok && !v {
			cfg.BrowserShow = true
		}
	}
	if !cfg.Verbose {
		if v, ok := parseBool(os.Getenv("VERBOSE")); ok && v {
			cfg.Verbose = true
		}
	}
}

func parseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
