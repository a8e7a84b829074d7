// Package feed parses Atom/OPDS catalog documents into typed structures.
//
// Parsing is pure: no I/O happens here. Callers fetch bytes and hand them to
// Parse together with the document's own URL so relative links can be resolved.
package feed

import (
	"strings"
	"time"
)

// PageRel names a pagination link of a feed.
type PageRel string

const (
	PageNext     PageRel = "next"
	PagePrevious PageRel = "previous"
	PageUp       PageRel = "up"
	PageStart    PageRel = "start"
)

// PageRels lists the pagination relations in display order.
var PageRels = []PageRel{PageStart, PageUp, PagePrevious, PageNext}

// AcquisitionKind classifies an entry link by what it gives access to.
type AcquisitionKind int

const (
	AcquisitionOpen AcquisitionKind = iota
	AcquisitionBuy
	AcquisitionBorrow
	AcquisitionSample
	AcquisitionSubscribe
	AcquisitionImage
	AcquisitionThumbnail
)

func (k AcquisitionKind) String() string {
	switch k {
	case AcquisitionOpen:
		return "open-access"
	case AcquisitionBuy:
		return "buy"
	case AcquisitionBorrow:
		return "borrow"
	case AcquisitionSample:
		return "sample"
	case AcquisitionSubscribe:
		return "subscribe"
	case AcquisitionImage:
		return "image"
	case AcquisitionThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// Fetchable reports whether a link of this kind can be downloaded without
// a purchase or loan.
func (k AcquisitionKind) Fetchable() bool {
	return k == AcquisitionOpen || k == AcquisitionSample
}

// Link is a plain feed or entry link with an absolute target.
type Link struct {
	Rel   string
	Href  string
	Type  string
	Title string
}

// AcquisitionLink is an entry link to a resource: a file, an offer or a cover.
type AcquisitionLink struct {
	Kind  AcquisitionKind
	Rel   string
	Href  string
	Type  string // media type hint, may be empty
	Title string
}

// Entry is one item of a feed: a publication or a sub-catalog.
type Entry struct {
	ID         string
	Title      string
	Summary    string
	Content    string
	Authors    []string
	Categories []string
	Updated    time.Time
	Published  time.Time

	// Navigation is the first Atom link that is not an acquisition; nil for
	// plain publications.
	Navigation   *Link
	Acquisitions []AcquisitionLink
	Links        []Link
}

// IsNavigation reports whether selecting the entry opens another feed.
func (e *Entry) IsNavigation() bool {
	return e.Navigation != nil
}

// Downloadable reports whether at least one acquisition link is open or sample.
func (e *Entry) Downloadable() bool {
	for _, a := range e.Acquisitions {
		if a.Kind.Fetchable() {
			return true
		}
	}
	return false
}

// Downloads returns the fetchable acquisition links in document order.
func (e *Entry) Downloads() []AcquisitionLink {
	var out []AcquisitionLink
	for _, a := range e.Acquisitions {
		if a.Kind.Fetchable() {
			out = append(out, a)
		}
	}
	return out
}

// PreferredDownload returns the first open-access link, else the first sample.
func (e *Entry) PreferredDownload() (AcquisitionLink, bool) {
	var sample *AcquisitionLink
	for i := range e.Acquisitions {
		a := &e.Acquisitions[i]
		switch a.Kind {
		case AcquisitionOpen:
			return *a, true
		case AcquisitionSample:
			if sample == nil {
				sample = a
			}
		}
	}
	if sample != nil {
		return *sample, true
	}
	return AcquisitionLink{}, false
}

// Cover returns the full-size image link, falling back to the thumbnail.
func (e *Entry) Cover() (string, bool) {
	thumb := ""
	for _, a := range e.Acquisitions {
		switch a.Kind {
		case AcquisitionImage:
			return a.Href, true
		case AcquisitionThumbnail:
			if thumb == "" {
				thumb = a.Href
			}
		}
	}
	return thumb, thumb != ""
}

// AuthorLine joins author names for display.
func (e *Entry) AuthorLine() string {
	return strings.Join(e.Authors, ", ")
}

// Feed is a parsed catalog page or search result.
type Feed struct {
	ID       string
	Title    string
	Subtitle string
	Updated  time.Time

	// URL is the document address used to resolve relative links.
	URL string

	Links   []Link
	Entries []Entry

	// SearchTemplate is an OpenSearch URL template returning Atom results.
	// It is kept unexpanded; use ExpandTemplate.
	SearchTemplate string

	// SearchDescription points at an OpenSearch description document when
	// the feed does not advertise a template directly.
	SearchDescription string

	// Pagination holds at most one link per PageRel.
	Pagination map[PageRel]string
}

// CanSearch reports whether the feed advertises a search endpoint.
func (f *Feed) CanSearch() bool {
	return f.SearchTemplate != "" || f.SearchDescription != ""
}

// PageLink returns the pagination target for rel.
func (f *Feed) PageLink(rel PageRel) (string, bool) {
	href, ok := f.Pagination[rel]
	return href, ok
}
