// Package verify checks that a published page links back to a target URL and
// scores the quality of that backlink.
package verify

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Request describes one backlink to verify.
type Request struct {
	SourceURL  string `json:"source_url"`
	TargetURL  string `json:"target_url"`
	AnchorText string `json:"anchor_text,omitempty"`
}

// LinkAttributes are the attributes of the matching anchor.
type LinkAttributes struct {
	Href       string `json:"href"`
	Rel        string `json:"rel,omitempty"`
	Target     string `json:"target,omitempty"`
	AnchorText string `json:"anchor_text"`
}

// Result is the outcome of a verification.
type Result struct {
	ID             string          `json:"id,omitempty"`
	SourceURL      string          `json:"source_url"`
	TargetURL      string          `json:"target_url"`
	AnchorText     string          `json:"anchor_text,omitempty"`
	StatusCode     int             `json:"status_code"`
	FinalURL       string          `json:"final_url"`
	RedirectChain  []string        `json:"redirect_chain,omitempty"`
	LinkFound      bool            `json:"link_found"`
	LinkAttributes *LinkAttributes `json:"link_attributes,omitempty"`
	AnchorMatches  bool            `json:"anchor_matches"`
	Dofollow       bool            `json:"dofollow"`
	UsedHeadless   bool            `json:"used_headless"`
	Score          int             `json:"score"`
	CheckedAt      time.Time       `json:"checked_at"`
	SnapshotURI    string          `json:"snapshot_uri,omitempty"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL           string
	StatusCode    int
	Headers       http.Header
	Body          []byte
	Duration      time.Duration
	RedirectChain []string
	UsedHeadless  bool
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(first FetchResponse) bool
}

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// BlobStore keeps raw page snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Store persists verification results.
type Store interface {
	Save(ctx context.Context, result Result) error
}

// Publisher emits verification events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
