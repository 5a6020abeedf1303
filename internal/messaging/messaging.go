// Package messaging dispatches the request/response messages that drive
// extraction, scanning, repository access and analysis.
package messaging

import (
	"github.com/hyperifyio/jusia/internal/analysis"
	"github.com/hyperifyio/jusia/internal/docid"
	"github.com/hyperifyio/jusia/internal/repository"
)

// Message types.
const (
	TypeExtractDocument = "EXTRACT_DOCUMENT"
	TypeScanDocuments   = "SCAN_DOCUMENTS"
	TypeSetS3Config     = "SET_S3_CONFIG"
	TypeGetS3Config     = "GET_S3_CONFIG"
	TypeClearS3Config   = "CLEAR_S3_CONFIG"
	TypeFetchS3Document = "FETCH_S3_DOCUMENT"
	TypeAnalyzeDocument = "ANALYZE_DOCUMENT"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Message is a request. Only the fields relevant to Type are read.
type Message struct {
	Type string `json:"type"`

	// URL opens a page before extracting or scanning. HTML supplies a page
	// snapshot directly. With neither, the active page is used.
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`

	Config       *repository.Credentials `json:"config,omitempty"`
	DocumentHash string                  `json:"documentHash,omitempty"`

	Analysis *analysis.Request `json:"analysis,omitempty"`
}

// Response answers one Message.
type Response struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	Text     string `json:"text,omitempty"`
	Source   string `json:"source,omitempty"`
	Selector string `json:"selector,omitempty"`

	Documents []docid.Reference   `json:"documents"`
	Current   *docid.Reference    `json:"current,omitempty"`
	Content   *repository.Content `json:"content,omitempty"`

	Config   *repository.Credentials `json:"config,omitempty"`
	Analysis *analysis.Result        `json:"analysis,omitempty"`
}

func failed(err error) Response {
	return Response{Status: StatusError, Message: err.Error()}
}
