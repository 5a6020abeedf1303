package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/jusia/internal/llm"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	LLM struct {
		Provider string `yaml:"provider" json:"provider"`
		Model    string `yaml:"model" json:"model"`
		APIKey   string `yaml:"key" json:"key"`
		BaseURL  string `yaml:"base" json:"base"`
	} `yaml:"llm" json:"llm"`

	Prompt     string `yaml:"prompt" json:"prompt"`
	PromptFile string `yaml:"promptFile" json:"promptFile"`

	Vertex struct {
		Project string `yaml:"project" json:"project"`
		Region  string `yaml:"region" json:"region"`
	} `yaml:"vertex" json:"vertex"`

	Store struct {
		Dir         string `yaml:"dir" json:"dir"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"store" json:"store"`

	Browser struct {
		ControlURL string `yaml:"controlURL" json:"controlURL"`
		Show       bool   `yaml:"show" json:"show"`
		Use        bool   `yaml:"use" json:"use"`
		Proxy      string `yaml:"proxy" json:"proxy"`
	} `yaml:"browser" json:"browser"`

	HTTP struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout"`
		UserAgent string        `yaml:"userAgent" json:"userAgent"`
	} `yaml:"http" json:"http"`

	Concurrency int  `yaml:"concurrency" json:"concurrency"`
	Verbose     bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset in cfg, so explicit flags keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, v string) {
		if trim(*dst) == "" && trim(v) != "" {
			*dst = v
		}
	}
	setString(&cfg.LLMProvider, fc.LLM.Provider)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	setString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setString(&cfg.Prompt, fc.Prompt)
	setString(&cfg.PromptFile, fc.PromptFile)
	setString(&cfg.VertexProject, fc.Vertex.Project)
	setString(&cfg.VertexRegion, fc.Vertex.Region)
	setString(&cfg.StoreDir, fc.Store.Dir)
	setString(&cfg.BrowserControlURL, fc.Browser.ControlURL)
	setString(&cfg.ProxyURL, fc.Browser.Proxy)
	setString(&cfg.UserAgent, fc.HTTP.UserAgent)

	if !cfg.StoreStrictPerms && fc.Store.StrictPerms {
		cfg.StoreStrictPerms = true
	}
	if !cfg.BrowserShow && fc.Browser.Show {
		cfg.BrowserShow = true
	}
	if !cfg.UseBrowser && fc.Browser.Use {
		cfg.UseBrowser = true
	}
	if cfg.HTTPTimeout == 0 && fc.HTTP.Timeout > 0 {
		cfg.HTTPTimeout = fc.HTTP.Timeout
	}
	if cfg.Concurrency == 0 && fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal schema validation.
func ValidateConfig(cfg Config) error {
	provider := strings.ToLower(trim(cfg.LLMProvider))
	if provider != "" && !slices.Contains(llm.Names(), provider) {
		return fmt.Errorf("config: unknown llm.provider %q (want one of %s)", cfg.LLMProvider, strings.Join(llm.Names(), ", "))
	}
	if provider == llm.Vertex && trim(cfg.VertexProject) == "" {
		return errors.New("config: vertex.project is required for the vertex provider (or set VERTEX_PROJECT)")
	}
	if cfg.HTTPTimeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if cfg.Concurrency < 0 {
		return errors.New("config: concurrency must not be negative")
	}
	return nil
}

func trim(s string) string { return strings.TrimSpace(s) }
