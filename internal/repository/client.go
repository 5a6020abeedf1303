package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

const defaultMaxBytes = 64 << 20

// Client fetches documents from the repository described by Credentials.
// There is no retry and no caching; every call goes to the backend.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each fetch. Zero leaves the context alone.
	PerRequestTimeout time.Duration
	// Objects serves gs:// endpoints. Nil disables them.
	Objects ObjectReader
	// MaxBytes caps the payload size. Zero means 64 MiB.
	MaxBytes int64
}

// Fetch retrieves the document stored under hash.
func (c *Client) Fetch(ctx context.Context, creds Credentials, hash string) (Content, error) {
	if !creds.Ready() {
		return Content{}, ErrNotConfigured
	}
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return Content{}, errors.New("document hash is required")
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}

	endpoint := strings.TrimSpace(creds.Endpoint)
	var (
		data        []byte
		contentType string
		err         error
	)
	if strings.HasPrefix(endpoint, "gs://") {
		data, contentType, err = c.fetchObject(ctx, endpoint, hash)
	} else {
		data, contentType, err = c.fetchHTTP(ctx, creds, endpoint, hash)
	}
	if err != nil {
		return Content{}, err
	}
	return c.decode(data, contentType)
}

func (c *Client) fetchHTTP(ctx context.Context, creds Credentials, endpoint, hash string) ([]byte, string, error) {
	target := strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return nil, "", fmt.Errorf("unsupported URL scheme: %q", req.URL.Scheme)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	b, err := readLimited(resp.Body, c.maxBytes())
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return b, resp.Header.Get("Content-Type"), nil
}

func (c *Client) fetchObject(ctx context.Context, endpoint, hash string) ([]byte, string, error) {
	if c.Objects == nil {
		return nil, "", fmt.Errorf("no object storage backend for %s", endpoint)
	}
	bucket, prefix := splitBucket(endpoint)
	if bucket == "" {
		return nil, "", fmt.Errorf("invalid bucket endpoint %q", endpoint)
	}
	object := hash
	if prefix != "" {
		object = prefix + "/" + hash
	}
	return c.Objects.ReadObject(ctx, bucket, object, c.maxBytes())
}

// decode classifies the payload. Text is converted to UTF-8 using the
// declared charset, or sniffed when none is declared.
func (c *Client) decode(data []byte, contentType string) (Content, error) {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(data)
	}
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		out := Content{Type: ContentPDF, Data: data}
		if n, err := PageCount(data); err == nil {
			out.Pages = n
		} else {
			log.Debug().Err(err).Msg("pdf page count")
		}
		return out, nil
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return Content{}, fmt.Errorf("decode charset: %w", err)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return Content{}, fmt.Errorf("decode charset: %w", err)
	}
	return Content{Type: ContentText, Data: text}, nil
}

// readLimited reads all of r, failing with ErrTooLarge instead of returning a
// truncated payload.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return b, nil
}

func (c *Client) maxBytes() int64 {
	if c.MaxBytes > 0 {
		return c.MaxBytes
	}
	return defaultMaxBytes
}

// splitBucket parses gs://bucket[/prefix].
func splitBucket(endpoint string) (bucket, prefix string) {
	rest := strings.TrimPrefix(endpoint, "gs://")
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
