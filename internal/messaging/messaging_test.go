package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperifyio/jusia/internal/analysis"
	"github.com/hyperifyio/jusia/internal/extract"
	"github.com/hyperifyio/jusia/internal/page"
	"github.com/hyperifyio/jusia/internal/repository"
	"github.com/hyperifyio/jusia/internal/store"
)

type fakePages struct {
	html   string
	opened string
}

func (f *fakePages) ActivePage(context.Context) (*page.Document, error) {
	return page.ParseString(f.html)
}

func (f *fakePages) Open(_ context.Context, url string) (*page.Document, error) {
	f.opened = url
	doc, err := page.ParseString(f.html)
	if err == nil {
		doc.URL = url
	}
	return doc, err
}

type fakeFetcher struct {
	calls   int
	creds   repository.Credentials
	content repository.Content
}

func (f *fakeFetcher) Fetch(_ context.Context, c repository.Credentials, hash string) (repository.Content, error) {
	f.calls++
	f.creds = c
	return f.content, nil
}

type fakeAnalyzer struct {
	got analysis.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (analysis.Result, error) {
	f.got = req
	return analysis.Result{Provider: "openai", Model: "gpt-4o", Completion: "parecer", DocumentChars: len(req.Document)}, nil
}

func newBackground(t *testing.T) (*Background, *fakeFetcher, *fakeAnalyzer) {
	t.Helper()
	f := &fakeFetcher{content: repository.Content{Type: repository.ContentText, Data: []byte("texto")}}
	a := &fakeAnalyzer{}
	return &Background{
		Store:      &store.FileStore{Dir: t.TempDir()},
		Pages:      &fakePages{html: `<div id="textoDocumento">Sentença <b>procedente</b></div><a onclick="abrirDocumento(123456789)">Sentença</a>`},
		Repository: f,
		Analyzer:   a,
	}, f, a
}

func TestSetConfig_RequiresAllFields(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeSetS3Config, Config: &repository.Credentials{Endpoint: "https://s3", Username: "u"}})
	if resp.Status != StatusError || resp.Message != repository.ErrIncomplete.Error() {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestSetConfig_PersistsAndCaches(t *testing.T) {
	b, f, _ := newBackground(t)
	ctx := context.Background()
	resp := b.Handle(ctx, Message{Type: TypeSetS3Config, Config: &repository.Credentials{Endpoint: " https://s3/docs ", Username: "u", Password: "p"}})
	if resp.Status != StatusSuccess {
		t.Fatalf("resp=%+v", resp)
	}

	var saved repository.Credentials
	if ok, err := b.Store.Get(ctx, store.RepositoryKey, &saved); !ok || err != nil {
		t.Fatalf("not persisted: ok=%v err=%v", ok, err)
	}
	if !saved.IsConfigured || saved.Endpoint != "https://s3/docs" {
		t.Fatalf("saved=%+v", saved)
	}

	got := b.Handle(ctx, Message{Type: TypeGetS3Config})
	if got.Config == nil || got.Config.Password == "p" || !got.Config.IsConfigured {
		t.Fatalf("config=%+v", got.Config)
	}

	resp = b.Handle(ctx, Message{Type: TypeFetchS3Document, DocumentHash: "abc"})
	if resp.Status != StatusSuccess || resp.Content == nil || resp.Content.Text() != "texto" {
		t.Fatalf("resp=%+v", resp)
	}
	if f.creds.Password != "p" {
		t.Fatalf("fetch must use cached credentials, got %+v", f.creds)
	}
}

func TestFetch_NotConfigured(t *testing.T) {
	b, f, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeFetchS3Document, DocumentHash: "abc"})
	if resp.Status != StatusError || resp.Message != "S3 repository not configured" {
		t.Fatalf("resp=%+v", resp)
	}
	if f.calls != 0 {
		t.Fatalf("fetcher must not be called")
	}
}

func TestClearConfig_ForgetsCredentials(t *testing.T) {
	b, f, _ := newBackground(t)
	ctx := context.Background()
	b.Handle(ctx, Message{Type: TypeSetS3Config, Config: &repository.Credentials{Endpoint: "https://s3", Username: "u", Password: "p"}})
	if resp := b.Handle(ctx, Message{Type: TypeClearS3Config}); resp.Status != StatusSuccess {
		t.Fatalf("resp=%+v", resp)
	}
	var saved repository.Credentials
	if ok, err := b.Store.Get(ctx, store.RepositoryKey, &saved); ok || err != nil {
		t.Fatalf("record still stored: ok=%v err=%v", ok, err)
	}
	resp := b.Handle(ctx, Message{Type: TypeFetchS3Document, DocumentHash: "abc"})
	if resp.Status != StatusError || resp.Message != "S3 repository not configured" || f.calls != 0 {
		t.Fatalf("resp=%+v calls=%d", resp, f.calls)
	}
}

func TestCredentials_LoadedLazilyFromStore(t *testing.T) {
	dir := t.TempDir()
	s := &store.FileStore{Dir: dir}
	creds := repository.Credentials{Endpoint: "https://s3", Username: "u", Password: "p", IsConfigured: true}
	if err := s.Put(context.Background(), store.RepositoryKey, creds); err != nil {
		t.Fatalf("put: %v", err)
	}
	f := &fakeFetcher{content: repository.Content{Type: repository.ContentText}}
	b := &Background{Store: &store.FileStore{Dir: dir}, Repository: f}
	resp := b.Handle(context.Background(), Message{Type: TypeFetchS3Document, DocumentHash: "h"})
	if resp.Status != StatusSuccess || f.creds != creds {
		t.Fatalf("resp=%+v creds=%+v", resp, f.creds)
	}
}

func TestExtract_FromActivePage(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeExtractDocument})
	if resp.Status != StatusSuccess || resp.Text != "Sentença procedente" || resp.Source != extract.SourceContainer {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatalf("missing request id")
	}
}

func TestExtract_OpensURL(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeExtractDocument, URL: "https://pje.example/doc"})
	if resp.Status != StatusSuccess || b.Pages.(*fakePages).opened != "https://pje.example/doc" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestExtract_NoActivePage(t *testing.T) {
	b := &Background{}
	resp := b.Handle(context.Background(), Message{Type: TypeExtractDocument})
	if resp.Status != StatusError || resp.Message != "no active tab found" {
		t.Fatalf("resp=%+v", resp)
	}
}

type panicky struct{}

func (panicky) Extract(*page.Document) extract.Result { panic("boom") }

func TestHandle_RecoversPanics(t *testing.T) {
	b, _, _ := newBackground(t)
	b.Extractor = panicky{}
	resp := b.Handle(context.Background(), Message{Type: TypeExtractDocument, HTML: "<p>x</p>"})
	if resp.Status != StatusError || !strings.Contains(resp.Message, "boom") {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestScan_ReturnsDocuments(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeScanDocuments})
	if resp.Status != StatusSuccess || len(resp.Documents) != 1 || resp.Documents[0].ID != "123456789" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestScan_NoMatchesSendsEmptyArray(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeScanDocuments, HTML: "<p>sem referências</p>"})
	if resp.Status != StatusSuccess {
		t.Fatalf("resp=%+v", resp)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"documents":[]`) {
		t.Fatalf("json=%s", raw)
	}
}

func TestAnalyze_PDFFromRepositoryUsesPlaceholder(t *testing.T) {
	b, f, a := newBackground(t)
	f.content = repository.Content{Type: repository.ContentPDF, Data: []byte("%PDF")}
	b.Handle(context.Background(), Message{Type: TypeSetS3Config, Config: &repository.Credentials{Endpoint: "https://s3", Username: "u", Password: "p"}})
	resp := b.Handle(context.Background(), Message{Type: TypeAnalyzeDocument, DocumentHash: "h9", Analysis: &analysis.Request{Provider: "openai", APIKey: "k"}})
	if resp.Status != StatusSuccess || resp.Analysis == nil || resp.Text != "parecer" {
		t.Fatalf("resp=%+v", resp)
	}
	if a.got.Document != "[PDF Document: h9]" {
		t.Fatalf("document=%q", a.got.Document)
	}
}

func TestAnalyze_FallsBackToPageText(t *testing.T) {
	b, _, a := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: TypeAnalyzeDocument})
	if resp.Status != StatusSuccess || a.got.Document != "Sentença procedente" {
		t.Fatalf("resp=%+v document=%q", resp, a.got.Document)
	}
}

func TestHandle_UnknownType(t *testing.T) {
	b, _, _ := newBackground(t)
	resp := b.Handle(context.Background(), Message{Type: "NOPE"})
	if resp.Status != StatusError || resp.RequestID == "" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestRoutes(t *testing.T) {
	b, _, _ := newBackground(t)
	srv := httptest.NewServer(b.Routes())
	defer srv.Close()

	body, _ := json.Marshal(Message{Type: TypeExtractDocument, HTML: `<div class="documento">  a   b </div>`})
	res, err := http.Post(srv.URL+"/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.StatusCode != http.StatusOK || resp.Status != StatusSuccess || resp.Text != "a b" {
		t.Fatalf("status=%d resp=%+v", res.StatusCode, resp)
	}

	bad, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", bad.StatusCode)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", health.StatusCode)
	}
}
