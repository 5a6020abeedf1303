// Package fetch loads pages over HTTP for extraction when no browser tab is
// available.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/jusia/internal/page"
)

const defaultMaxBytes = 16 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// Client wraps http.Client with a per-request timeout, a redirect cap and an
// optional concurrency gate.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBytes caps the body size. Zero means 16 MiB.
	MaxBytes int64

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a single GET and returns the body decoded to UTF-8 together with
// the response content type. Only HTML responses are accepted.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, "", err
	}
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, "", fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	contentType := resp.Header.Get("Content-Type")
	if !isAllowedHTMLContentType(contentType) {
		return nil, "", fmt.Errorf("unsupported content type: %s", contentType)
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("url", rawURL).Msg("charset detection failed; using raw bytes")
		return raw, contentType, nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode body: %w", err)
	}
	return b, contentType, nil
}

// Page fetches rawURL and parses it. Frames of the returned document are
// fetched on demand, relative to the page URL.
func (c *Client) Page(ctx context.Context, rawURL string) (*page.Document, error) {
	b, _, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	doc, err := page.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	doc.URL = rawURL
	return doc.WithFrames(c.frames(ctx, rawURL)), nil
}

func (c *Client) frames(ctx context.Context, base string) page.FrameResolver {
	return func(ref page.FrameRef) (*page.Document, error) {
		src := strings.TrimSpace(ref.Src)
		if src == "" || strings.HasPrefix(src, "about:") {
			return nil, page.ErrFrameInaccessible
		}
		u, err := resolve(base, src)
		if err != nil {
			return nil, page.ErrFrameInaccessible
		}
		doc, err := c.Page(ctx, u)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("url", u).Msg("frame fetch failed")
			return nil, page.ErrFrameInaccessible
		}
		return doc, nil
	}
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	u := b.ResolveReference(r)
	if !isHTTPScheme(u) {
		return "", fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}
	return u.String(), nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// acquire waits for a request slot or for ctx to end.
func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
