package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func creds(endpoint string) Credentials {
	return Credentials{Endpoint: endpoint, Username: "alice", Password: "s3cret", IsConfigured: true}
}

func TestFetch_NotConfiguredMakesNoRequest(t *testing.T) {
	var calls int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	c := &Client{}
	cr := creds(srv.URL)
	cr.IsConfigured = false
	if _, err := c.Fetch(context.Background(), cr, "abc"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
	if _, err := c.Fetch(context.Background(), Credentials{}, "abc"); err == nil || err.Error() != "S3 repository not configured" {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("no request expected, got %d", calls)
	}
}

func TestFetch_TextWithBasicAuthAndCharset(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/docs/abc123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		// "Decisão" in Latin-1
		_, _ = w.Write([]byte{'D', 'e', 'c', 'i', 's', 0xE3, 'o'})
	})
	c := &Client{PerRequestTimeout: 2 * time.Second}
	got, err := c.Fetch(context.Background(), creds(srv.URL+"/docs/"), "abc123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Type != ContentText || got.Text() != "Decisão" {
		t.Fatalf("unexpected content: %+v %q", got.Type, got.Text())
	}
}

func TestFetch_PDFPayload(t *testing.T) {
	payload := []byte("%PDF-1.4 not really a pdf")
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	})
	c := &Client{}
	got, err := c.Fetch(context.Background(), creds(srv.URL), "h1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Type != ContentPDF || string(got.Data) != string(payload) {
		t.Fatalf("unexpected content: %+v", got)
	}
	if got.Pages != 0 {
		t.Fatalf("broken pdf must not report pages, got %d", got.Pages)
	}
	if s := AnalysisText("h1", got); s != "[PDF Document: h1]" {
		t.Fatalf("placeholder=%q", s)
	}
}

func TestFetch_HTTPErrorStatus(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	_, err := (&Client{}).Fetch(context.Background(), creds(srv.URL), "x")
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusForbidden {
		t.Fatalf("want HTTPError 403, got %v", err)
	}
}

func TestFetch_OversizedPayloadIsAnError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 and much more"))
	})
	c := &Client{MaxBytes: 8}
	if _, err := c.Fetch(context.Background(), creds(srv.URL), "grande"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
}

func TestReadLimited(t *testing.T) {
	b, err := readLimited(strings.NewReader("12345678"), 8)
	if err != nil || string(b) != "12345678" {
		t.Fatalf("at limit: b=%q err=%v", b, err)
	}
	if _, err := readLimited(strings.NewReader("123456789"), 8); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: err=%v", err)
	}
}

func TestFetch_RejectsNonHTTPScheme(t *testing.T) {
	_, err := (&Client{}).Fetch(context.Background(), creds("ftp://example.com"), "x")
	if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Fatalf("unexpected error: %v", err)
	}
}

type fakeObjects struct {
	bucket, object string
	data           []byte
	contentType    string
}

func (f *fakeObjects) ReadObject(_ context.Context, bucket, object string, _ int64) ([]byte, string, error) {
	f.bucket, f.object = bucket, object
	return f.data, f.contentType, nil
}

func TestFetch_BucketEndpoint(t *testing.T) {
	objs := &fakeObjects{data: []byte("texto do processo"), contentType: ""}
	c := &Client{Objects: objs}
	got, err := c.Fetch(context.Background(), creds("gs://pje-docs/processos/"), "abc")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if objs.bucket != "pje-docs" || objs.object != "processos/abc" {
		t.Fatalf("read %s/%s", objs.bucket, objs.object)
	}
	if got.Type != ContentText || got.Text() != "texto do processo" {
		t.Fatalf("unexpected content: %+v", got)
	}
}

func TestFetch_BucketWithoutBackend(t *testing.T) {
	if _, err := (&Client{}).Fetch(context.Background(), creds("gs://b"), "abc"); err == nil {
		t.Fatalf("expected error without object backend")
	}
}

func TestContentJSON(t *testing.T) {
	b, err := json.Marshal(Content{Type: ContentPDF, Data: []byte{0x25, 0x50, 0x44, 0x46}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"pdf","data":"JVBERg=="}` {
		t.Fatalf("json=%s", b)
	}
	b, _ = json.Marshal(Content{Type: ContentText, Data: []byte("olá")})
	if string(b) != `{"type":"text","data":"olá"}` {
		t.Fatalf("json=%s", b)
	}
}

func TestCredentials(t *testing.T) {
	if err := (Credentials{Endpoint: "https://x", Username: "u"}).Validate(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("want ErrIncomplete, got %v", err)
	}
	if err := creds("https://x").Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if r := creds("https://x").Redacted(); r.Password == "s3cret" {
		t.Fatalf("password not redacted")
	}
}
