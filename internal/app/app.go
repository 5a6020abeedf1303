// Package app wires configuration, storage, page sources, the repository
// client and the analyzer into the operations the jusia command runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jusia/internal/analysis"
	"github.com/hyperifyio/jusia/internal/browser"
	"github.com/hyperifyio/jusia/internal/docid"
	"github.com/hyperifyio/jusia/internal/extract"
	"github.com/hyperifyio/jusia/internal/fetch"
	"github.com/hyperifyio/jusia/internal/llm"
	"github.com/hyperifyio/jusia/internal/messaging"
	"github.com/hyperifyio/jusia/internal/page"
	"github.com/hyperifyio/jusia/internal/repository"
	"github.com/hyperifyio/jusia/internal/store"
)

// ActiveSource names the browser's active tab as a page source.
const ActiveSource = "active"

type App struct {
	cfg        Config
	httpClient *http.Client
	pages      *pageSource
	objects    *repository.GCSReader
	bg         *messaging.Background

	// Stdin is read for the "-" page source.
	Stdin io.Reader
}

// New builds an App from cfg. Nothing is contacted until an operation runs:
// the browser is launched or attached on first use, and so is Cloud Storage.
func New(ctx context.Context, cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if trim(cfg.Prompt) == "" && trim(cfg.PromptFile) != "" {
		b, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		cfg.Prompt = string(b)
	}

	var proxy func(*http.Request) (*url.URL, error)
	if trim(cfg.ProxyURL) != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(u)
	}
	httpClient := newHTTPClient(cfg.HTTPTimeout, proxy)

	storeDir := cfg.StoreDir
	if trim(storeDir) == "" {
		storeDir = store.DefaultDir()
	}

	pages := &pageSource{
		cfg: browser.Config{
			ControlURL: cfg.BrowserControlURL,
			Headless:   !cfg.BrowserShow,
			ProxyURL:   cfg.ProxyURL,
			Timeout:    cfg.HTTPTimeout,
		},
		useBrowser: cfg.UseBrowser || trim(cfg.BrowserControlURL) != "",
		fetcher: &fetch.Client{
			HTTPClient:        httpClient,
			UserAgent:         cfg.UserAgent,
			PerRequestTimeout: cfg.HTTPTimeout,
			MaxConcurrent:     cfg.Concurrency,
		},
	}
	objects := &repository.GCSReader{}

	a := &App{
		cfg:        cfg,
		httpClient: httpClient,
		pages:      pages,
		objects:    objects,
		Stdin:      os.Stdin,
	}
	a.bg = &messaging.Background{
		Store: &store.FileStore{Dir: storeDir, StrictPerms: cfg.StoreStrictPerms},
		Pages: pages,
		Repository: &repository.Client{
			HTTPClient:        httpClient,
			UserAgent:         cfg.UserAgent,
			PerRequestTimeout: cfg.HTTPTimeout,
			Objects:           objects,
		},
		Analyzer: a.analyzer(),
	}
	log.Debug().Str("store", storeDir).Str("provider", cfg.LLMProvider).Bool("browser", pages.useBrowser).Msg("app configured")
	return a, nil
}

func (a *App) analyzer() *analysis.Analyzer {
	return &analysis.Analyzer{
		DefaultProvider: a.cfg.LLMProvider,
		Defaults: llm.Options{
			APIKey:        a.cfg.LLMAPIKey,
			Model:         a.cfg.LLMModel,
			BaseURL:       a.cfg.LLMBaseURL,
			HTTPClient:    a.httpClient,
			VertexProject: a.cfg.VertexProject,
			VertexRegion:  a.cfg.VertexRegion,
		},
		New: llm.New,
	}
}

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// Background returns the message handler shared by the CLI and serve mode.
func (a *App) Background() *messaging.Background { return a.bg }

// Close releases the browser and the storage client.
func (a *App) Close() {
	if err := a.pages.close(); err != nil {
		log.Warn().Err(err).Msg("close browser")
	}
	if err := a.objects.Close(); err != nil {
		log.Warn().Err(err).Msg("close storage client")
	}
}

// LoadPage loads a page from src: "active" (or empty) for the browser's
// active tab, "-" for HTML on stdin, an http(s) URL, or a file path.
func (a *App) LoadPage(ctx context.Context, src string) (*page.Document, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "" || src == ActiveSource:
		return a.pages.ActivePage(ctx)
	case src == "-":
		return page.Parse(a.Stdin)
	case isURL(src):
		return a.pages.Open(ctx, src)
	default:
		return page.ReadFile(src)
	}
}

// Extract loads src and runs the extraction ladder. A failed extraction is
// returned as an error carrying the result's message.
func (a *App) Extract(ctx context.Context, src string) (extract.Result, error) {
	doc, err := a.LoadPage(ctx, src)
	if err != nil {
		return extract.Result{}, err
	}
	res := extract.LadderExtractor{}.Extract(doc)
	if res.Failed() {
		return res, errors.New(res.Text)
	}
	return res, nil
}

// Scan loads src and lists the document identifiers it references.
func (a *App) Scan(ctx context.Context, src string) ([]docid.Reference, error) {
	doc, err := a.LoadPage(ctx, src)
	if err != nil {
		return nil, err
	}
	return docid.Scan(doc)
}

// Do sends msg through the message handler and turns an error response into
// an error.
func (a *App) Do(ctx context.Context, msg messaging.Message) (messaging.Response, error) {
	resp := a.bg.Handle(ctx, msg)
	if resp.Status == messaging.StatusError {
		return resp, errors.New(resp.Message)
	}
	return resp, nil
}

// SetRepository saves the repository credentials.
func (a *App) SetRepository(ctx context.Context, c repository.Credentials) error {
	_, err := a.Do(ctx, messaging.Message{Type: messaging.TypeSetS3Config, Config: &c})
	return err
}

// Repository returns the saved credentials with the password masked.
func (a *App) Repository(ctx context.Context) (repository.Credentials, error) {
	resp, err := a.Do(ctx, messaging.Message{Type: messaging.TypeGetS3Config})
	if err != nil || resp.Config == nil {
		return repository.Credentials{}, err
	}
	return *resp.Config, nil
}

// ClearRepository removes the saved credentials.
func (a *App) ClearRepository(ctx context.Context) error {
	_, err := a.Do(ctx, messaging.Message{Type: messaging.TypeClearS3Config})
	return err
}

// FetchDocument reads one document from the configured repository.
func (a *App) FetchDocument(ctx context.Context, hash string) (repository.Content, error) {
	resp, err := a.Do(ctx, messaging.Message{Type: messaging.TypeFetchS3Document, DocumentHash: hash})
	if err != nil || resp.Content == nil {
		return repository.Content{}, err
	}
	return *resp.Content, nil
}

// AnalyzeInput selects the document an analysis runs on: a repository
// hash, or a page source as accepted by LoadPage.
type AnalyzeInput struct {
	Source       string
	DocumentHash string
	Provider     string
	Model        string
	APIKey       string
	Prompt       string
}

// Analyze extracts or fetches the document and runs the analysis.
func (a *App) Analyze(ctx context.Context, in AnalyzeInput) (analysis.Result, error) {
	prompt := in.Prompt
	if trim(prompt) == "" {
		prompt = a.cfg.Prompt
	}
	req := &analysis.Request{
		Provider: in.Provider,
		Model:    in.Model,
		APIKey:   in.APIKey,
		Prompt:   prompt,
	}
	msg := messaging.Message{Type: messaging.TypeAnalyzeDocument, DocumentHash: in.DocumentHash, Analysis: req}
	if trim(in.DocumentHash) == "" {
		res, err := a.Extract(ctx, in.Source)
		if err != nil {
			return analysis.Result{}, err
		}
		if trim(res.Text) == "" {
			return analysis.Result{}, analysis.ErrNoContent
		}
		req.Document = res.Text
		req.Source = in.Source
		if req.Source == "" {
			req.Source = ActiveSource
		}
	}
	resp, err := a.Do(ctx, msg)
	if err != nil {
		return analysis.Result{}, err
	}
	if resp.Analysis == nil {
		return analysis.Result{}, errors.New("analysis returned no result")
	}
	return *resp.Analysis, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// pageSource serves pages from a browser session, started on first use, or
// over plain HTTP when no browser is configured.
type pageSource struct {
	cfg        browser.Config
	useBrowser bool
	fetcher    *fetch.Client

	mu      sync.Mutex
	session *browser.Session
}

func (p *pageSource) connect(ctx context.Context) (*browser.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return p.session, nil
	}
	s, err := browser.New(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.session = s
	return s, nil
}

func (p *pageSource) ActivePage(ctx context.Context) (*page.Document, error) {
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	return s.ActivePage(ctx)
}

func (p *pageSource) Open(ctx context.Context, rawURL string) (*page.Document, error) {
	if !p.useBrowser {
		return p.fetcher.Page(ctx, rawURL)
	}
	s, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, rawURL)
}

func (p *pageSource) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}
