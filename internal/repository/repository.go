// Package repository fetches documents by hash from the configured object
// storage: an HTTP endpoint behind Basic auth, or a Cloud Storage bucket.
package repository

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured is returned before any network call when no repository
// credentials have been saved.
var ErrNotConfigured = errors.New("S3 repository not configured")

// ErrTooLarge rejects a document bigger than the payload cap.
var ErrTooLarge = errors.New("document exceeds size limit")

// ErrIncomplete rejects credentials missing a required field.
var ErrIncomplete = errors.New("endpoint, username and password are required")

// Credentials describe how to reach the document repository.
type Credentials struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	IsConfigured bool   `json:"isConfigured" yaml:"isConfigured"`
}

// Validate checks that all three fields are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" || strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrIncomplete
	}
	return nil
}

// Ready reports whether the credentials may be used for a fetch.
func (c Credentials) Ready() bool {
	return c.IsConfigured && strings.TrimSpace(c.Endpoint) != ""
}

// Redacted returns a copy safe to print or send back to a client.
func (c Credentials) Redacted() Credentials {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// ContentType is the kind of payload a fetch returned.
type ContentType string

const (
	ContentPDF  ContentType = "pdf"
	ContentText ContentType = "text"
)

// Content is a fetched document. Text payloads are already decoded to UTF-8.
type Content struct {
	Type  ContentType
	Data  []byte
	Pages int
}

// Text returns the payload as a string. PDFs are not converted.
func (c Content) Text() string {
	return string(c.Data)
}

type contentJSON struct {
	Type  ContentType `json:"type"`
	Data  string      `json:"data"`
	Pages int         `json:"pages,omitempty"`
}

// MarshalJSON encodes text payloads as a string and PDFs as base64.
func (c Content) MarshalJSON() ([]byte, error) {
	out := contentJSON{Type: c.Type, Pages: c.Pages}
	if c.Type == ContentPDF {
		out.Data = base64.StdEncoding.EncodeToString(c.Data)
	} else {
		out.Data = string(c.Data)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (c *Content) UnmarshalJSON(b []byte) error {
	var in contentJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	c.Type, c.Pages = in.Type, in.Pages
	if in.Type == ContentPDF {
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return fmt.Errorf("decode pdf payload: %w", err)
		}
		c.Data = data
		return nil
	}
	c.Data = []byte(in.Data)
	return nil
}

// HTTPError reports a non-2xx response from the repository endpoint.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("repository fetch failed: %s", e.Status)
}
