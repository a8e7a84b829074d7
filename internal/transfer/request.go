package transfer

import (
	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/feed"
)

// RequestKind selects the unit of work.
type RequestKind int

const (
	FetchPage RequestKind = iota
	Search
	Download
)

func (k RequestKind) String() string {
	switch k {
	case FetchPage:
		return "fetch"
	case Search:
		return "search"
	case Download:
		return "download"
	default:
		return "unknown"
	}
}

// Request is one unit of work. Seq is assigned by the caller and must be
// unique; every message about this request carries it.
type Request struct {
	Seq  uint64
	Kind RequestKind

	// Connection supplies the username for credential resolution. A zero
	// value means no authentication.
	Connection config.Connection

	// URL is the page to fetch or the file to download.
	URL string

	// Search parameters. SearchTemplate wins over SearchDescription.
	Query             string
	SearchTemplate    string
	SearchDescription string
	// BaseURL resolves a relative SearchTemplate.
	BaseURL string

	// Download parameters.
	DestDir string
	// MediaType is the acquisition link's type hint, used when the response
	// does not say.
	MediaType string
	Title     string
}

// Message is delivered on the pool's channel. Exactly one Success or
// Failure is delivered per request unless it is cancelled.
type Message interface {
	Sequence() uint64
}

// Progress reports download bytes. Total is -1 when the size is unknown.
type Progress struct {
	Seq      uint64
	Received int64
	Total    int64
}

// Success carries a parsed feed (fetch, search) or a saved file (download).
type Success struct {
	Seq  uint64
	Kind RequestKind

	Feed  *feed.Feed
	Query string

	Path string
	Size int64
}

// Failure is a request that did not complete.
type Failure struct {
	Seq  uint64
	Kind RequestKind
	Err  *Error
}

func (m Progress) Sequence() uint64 { return m.Seq }
func (m Success) Sequence() uint64  { return m.Seq }
func (m Failure) Sequence() uint64  { return m.Seq }

// Terminal reports whether msg ends its request.
func Terminal(msg Message) bool {
	switch msg.(type) {
	case Success, Failure:
		return true
	}
	return false
}
