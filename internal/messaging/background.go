package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/jusia/internal/analysis"
	"github.com/hyperifyio/jusia/internal/browser"
	"github.com/hyperifyio/jusia/internal/docid"
	"github.com/hyperifyio/jusia/internal/extract"
	"github.com/hyperifyio/jusia/internal/page"
	"github.com/hyperifyio/jusia/internal/repository"
	"github.com/hyperifyio/jusia/internal/store"
)

// PageSource provides the page a message operates on.
type PageSource interface {
	ActivePage(ctx context.Context) (*page.Document, error)
	Open(ctx context.Context, url string) (*page.Document, error)
}

// Fetcher reads documents from the repository.
type Fetcher interface {
	Fetch(ctx context.Context, creds repository.Credentials, hash string) (repository.Content, error)
}

// Analyzer runs an AI analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Background holds the state shared by message handlers: the collaborators
// and the repository credentials cache. Messages are handled one at a time.
type Background struct {
	Store      store.Store
	Pages      PageSource
	Repository Fetcher
	Analyzer   Analyzer
	Extractor  extract.Extractor

	mu     sync.Mutex
	creds  repository.Credentials
	loaded bool
}

// Preload fills the credentials cache from the store.
func (b *Background) Preload(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.credentials(ctx)
	return err
}

// Handle processes msg and always returns a response; failures are reported
// with StatusError.
func (b *Background) Handle(ctx context.Context, msg Message) (resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	logger := log.With().Str("req_id", id).Str("type", msg.Type).Logger()
	ctx = logger.WithContext(ctx)

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("message handler panicked")
			resp = failed(fmt.Errorf("internal error: %v", p))
		}
		resp.RequestID = id
		if resp.Status == StatusError {
			logger.Warn().Str("message", resp.Message).Msg("message failed")
		} else {
			logger.Debug().Msg("message handled")
		}
	}()

	switch msg.Type {
	case TypeExtractDocument:
		return b.extractDocument(ctx, msg)
	case TypeScanDocuments:
		return b.scanDocuments(ctx, msg)
	case TypeSetS3Config:
		return b.setConfig(ctx, msg)
	case TypeGetS3Config:
		return b.getConfig(ctx)
	case TypeClearS3Config:
		return b.clearConfig(ctx)
	case TypeFetchS3Document:
		return b.fetchDocument(ctx, msg)
	case TypeAnalyzeDocument:
		return b.analyzeDocument(ctx, msg)
	default:
		return failed(fmt.Errorf("unknown message type %q", msg.Type))
	}
}

// credentials returns the cached credentials, loading them on first use.
// The caller holds mu.
func (b *Background) credentials(ctx context.Context) (repository.Credentials, error) {
	if b.loaded {
		return b.creds, nil
	}
	if b.Store != nil {
		var c repository.Credentials
		ok, err := b.Store.Get(ctx, store.RepositoryKey, &c)
		if err != nil {
			return repository.Credentials{}, fmt.Errorf("load repository config: %w", err)
		}
		if ok {
			b.creds = c
		}
	}
	b.loaded = true
	return b.creds, nil
}

func (b *Background) loadPage(ctx context.Context, msg Message) (*page.Document, error) {
	switch {
	case strings.TrimSpace(msg.HTML) != "":
		doc, err := page.ParseString(msg.HTML)
		if err != nil {
			return nil, err
		}
		doc.URL = msg.URL
		return doc, nil
	case b.Pages == nil:
		return nil, browser.ErrNoActivePage
	case strings.TrimSpace(msg.URL) != "":
		return b.Pages.Open(ctx, msg.URL)
	default:
		return b.Pages.ActivePage(ctx)
	}
}

func (b *Background) extractor() extract.Extractor {
	if b.Extractor != nil {
		return b.Extractor
	}
	return extract.LadderExtractor{}
}

func (b *Background) extractDocument(ctx context.Context, msg Message) Response {
	doc, err := b.loadPage(ctx, msg)
	if err != nil {
		return failed(err)
	}
	res := b.extractor().Extract(doc)
	if res.Failed() {
		return Response{Status: StatusError, Message: res.Text}
	}
	zerolog.Ctx(ctx).Info().Str("source", res.Source).Int("chars", len([]rune(res.Text))).Msg("document extracted")
	return Response{Status: StatusSuccess, Text: res.Text, Source: res.Source, Selector: res.Selector}
}

func (b *Background) scanDocuments(ctx context.Context, msg Message) Response {
	doc, err := b.loadPage(ctx, msg)
	if err != nil {
		return failed(err)
	}
	refs, err := docid.Scan(doc)
	if err != nil {
		return failed(err)
	}
	resp := Response{Status: StatusSuccess, Documents: refs}
	if cur, ok := docid.Current(refs); ok {
		resp.Current = &cur
	}
	zerolog.Ctx(ctx).Info().Int("documents", len(refs)).Msg("documents scanned")
	return resp
}

func (b *Background) setConfig(ctx context.Context, msg Message) Response {
	if msg.Config == nil {
		return failed(repository.ErrIncomplete)
	}
	c := *msg.Config
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	c.Username = strings.TrimSpace(c.Username)
	if err := c.Validate(); err != nil {
		return failed(err)
	}
	c.IsConfigured = true
	if b.Store != nil {
		if err := b.Store.Put(ctx, store.RepositoryKey, c); err != nil {
			return failed(fmt.Errorf("save repository config: %w", err))
		}
	}
	b.creds, b.loaded = c, true
	return Response{Status: StatusSuccess}
}

// clearConfig forgets the saved credentials; later fetches report the
// repository as not configured.
func (b *Background) clearConfig(ctx context.Context) Response {
	if b.Store != nil {
		if err := b.Store.Delete(ctx, store.RepositoryKey); err != nil {
			return failed(fmt.Errorf("clear repository config: %w", err))
		}
	}
	b.creds, b.loaded = repository.Credentials{}, true
	return Response{Status: StatusSuccess}
}

func (b *Background) getConfig(ctx context.Context) Response {
	c, err := b.credentials(ctx)
	if err != nil {
		return failed(err)
	}
	r := c.Redacted()
	return Response{Status: StatusSuccess, Config: &r}
}

func (b *Background) fetchDocument(ctx context.Context, msg Message) Response {
	content, err := b.fetch(ctx, msg.DocumentHash)
	if err != nil {
		return failed(err)
	}
	return Response{Status: StatusSuccess, Content: &content}
}

func (b *Background) fetch(ctx context.Context, hash string) (repository.Content, error) {
	c, err := b.credentials(ctx)
	if err != nil {
		return repository.Content{}, err
	}
	if !c.Ready() {
		return repository.Content{}, repository.ErrNotConfigured
	}
	if b.Repository == nil {
		return repository.Content{}, errors.New("no repository client")
	}
	return b.Repository.Fetch(ctx, c, hash)
}

// analyzeDocument analyzes the text in the request, or else the repository
// document named by DocumentHash, or else the extracted page text.
func (b *Background) analyzeDocument(ctx context.Context, msg Message) Response {
	if b.Analyzer == nil {
		return failed(errors.New("analysis is not configured"))
	}
	var req analysis.Request
	if msg.Analysis != nil {
		req = *msg.Analysis
	}
	if strings.TrimSpace(req.Document) == "" {
		switch {
		case strings.TrimSpace(msg.DocumentHash) != "":
			content, err := b.fetch(ctx, msg.DocumentHash)
			if err != nil {
				return failed(err)
			}
			req.Document = repository.AnalysisText(msg.DocumentHash, content)
			req.Source = "repository:" + msg.DocumentHash
		case strings.TrimSpace(msg.HTML) != "" || strings.TrimSpace(msg.URL) != "" || b.Pages != nil:
			doc, err := b.loadPage(ctx, msg)
			if err != nil {
				return failed(err)
			}
			res := b.extractor().Extract(doc)
			if res.Failed() {
				return Response{Status: StatusError, Message: res.Text}
			}
			req.Document = res.Text
			req.Source = doc.URL
		}
	}
	result, err := b.Analyzer.Analyze(ctx, req)
	if err != nil {
		return failed(err)
	}
	zerolog.Ctx(ctx).Info().Str("provider", result.Provider).Str("model", result.Model).Int("chars", result.DocumentChars).Msg("analysis complete")
	return Response{Status: StatusSuccess, Analysis: &result, Text: result.Completion}
}
