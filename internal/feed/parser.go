package feed

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"

	"github.com/ncopds/ncopds/internal/util/sanitize"
)

const (
	atomNS  = "http://www.w3.org/2005/Atom"
	opdsRel = "http://opds-spec.org/"
)

// braceEscapes undoes the percent-encoding the Atom parser applies to
// template braces when it normalizes href attributes.
var braceEscapes = strings.NewReplacer("%7B", "{", "%7b", "{", "%7D", "}", "%7d", "}")

// checkRoot rejects anything that is not an Atom feed document. The Atom
// parser matches elements by local name only, so RSS or namespace-less
// documents would otherwise slip through.
func checkRoot(data []byte) *ParseError {
	if len(bytes.TrimSpace(data)) == 0 {
		return parseErrorf(ReasonMalformed, "empty document")
	}
	p := xpp.NewXMLPullParser(bytes.NewReader(data), false, charset.NewReaderLabel)
	for {
		ev, err := p.Next()
		if err != nil {
			return &ParseError{Reason: ReasonMalformed, Err: err}
		}
		switch ev {
		case xpp.StartTag:
			if p.Space != atomNS || p.Name != "feed" {
				return parseErrorf(ReasonUnsupportedNamespace, "root element {%s}%s", p.Space, p.Name)
			}
			return nil
		case xpp.EndDocument:
			return parseErrorf(ReasonMalformed, "no root element")
		}
	}
}

// Parse decodes an Atom catalog document. docURL is the address the document
// was fetched from; relative links are resolved against it. Entries keep the
// order the server sent them in. Every text field is reduced to plain,
// terminal-safe text.
func Parse(data []byte, docURL string) (*Feed, error) {
	if err := checkRoot(data); err != nil {
		return nil, err
	}
	raw, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: ReasonMalformed, Err: err}
	}

	base := parseBase(docURL)
	f := &Feed{
		ID:         strings.TrimSpace(raw.ID),
		Title:      lineText(raw.Title),
		Subtitle:   lineText(raw.Subtitle),
		Updated:    timeOf(raw.UpdatedParsed),
		URL:        docURL,
		Pagination: make(map[PageRel]string),
		Entries:    make([]Entry, 0, len(raw.Entries)),
	}

	for _, l := range raw.Links {
		href := resolve(base, l.Href)
		if href == "" {
			continue
		}
		if l.Rel == "search" {
			switch {
			case isAtom(l.Type):
				if f.SearchTemplate == "" {
					// Templates are expanded before resolution; resolving
					// now would escape the braces.
					f.SearchTemplate = braceEscapes.Replace(strings.TrimSpace(l.Href))
				}
			case strings.Contains(strings.ToLower(l.Type), "opensearchdescription"):
				if f.SearchDescription == "" {
					f.SearchDescription = href
				}
			}
			continue
		}
		if rel, ok := pageRel(l.Rel); ok {
			if _, dup := f.Pagination[rel]; !dup {
				f.Pagination[rel] = href
			}
			continue
		}
		f.Links = append(f.Links, Link{Rel: l.Rel, Href: href, Type: l.Type, Title: lineText(l.Title)})
	}

	for i, re := range raw.Entries {
		e, err := convertEntry(re, base)
		if err != nil {
			err.Detail = "entry " + strconv.Itoa(i+1) + ": " + err.Detail
			return nil, err
		}
		f.Entries = append(f.Entries, e)
	}
	return f, nil
}

func convertEntry(re *atom.Entry, base *url.URL) (Entry, *ParseError) {
	e := Entry{
		ID:        strings.TrimSpace(re.ID),
		Title:     lineText(re.Title),
		Summary:   blockText(re.Summary),
		Updated:   timeOf(re.UpdatedParsed),
		Published: timeOf(re.PublishedParsed),
	}
	if re.Content != nil {
		e.Content = blockText(re.Content.Value)
	}
	if e.ID == "" {
		return Entry{}, parseErrorf(ReasonMissingField, "id")
	}
	if e.Title == "" {
		return Entry{}, parseErrorf(ReasonMissingField, "title (id %s)", e.ID)
	}

	for _, a := range re.Authors {
		if name := lineText(a.Name); name != "" {
			e.Authors = append(e.Authors, name)
		}
	}
	for _, c := range re.Categories {
		label := lineText(c.Label)
		if label == "" {
			label = lineText(c.Term)
		}
		if label != "" {
			e.Categories = append(e.Categories, label)
		}
	}

	for _, l := range re.Links {
		href := resolve(base, l.Href)
		if href == "" {
			continue
		}
		if kind, ok := acquisitionKind(l.Rel, l.Type); ok {
			e.Acquisitions = append(e.Acquisitions, AcquisitionLink{
				Kind:  kind,
				Rel:   l.Rel,
				Href:  href,
				Type:  l.Type,
				Title: lineText(l.Title),
			})
			continue
		}
		link := Link{Rel: l.Rel, Href: href, Type: l.Type, Title: lineText(l.Title)}
		if isAtom(l.Type) && e.Navigation == nil {
			e.Navigation = &link
			continue
		}
		e.Links = append(e.Links, link)
	}
	if e.Navigation == nil && len(e.Acquisitions) == 0 && len(e.Links) == 0 {
		return Entry{}, parseErrorf(ReasonMissingLink, "no link (id %s)", e.ID)
	}
	return e, nil
}

// lineText flattens a text construct to one terminal-safe line. The Atom
// parser has already decoded entities but drops the construct's type, so
// markup is always rendered.
func lineText(s string) string {
	return sanitize.DisplayText(htmlToText(s))
}

// blockText is lineText for summaries and content, keeping line breaks.
func blockText(s string) string {
	return sanitize.DisplayBlock(htmlToText(s))
}

func acquisitionKind(rel, mediaType string) (AcquisitionKind, bool) {
	switch rel {
	case opdsRel + "acquisition", opdsRel + "acquisition/open-access":
		return AcquisitionOpen, true
	case opdsRel + "acquisition/buy":
		return AcquisitionBuy, true
	case opdsRel + "acquisition/borrow":
		return AcquisitionBorrow, true
	case opdsRel + "acquisition/sample", opdsRel + "acquisition/preview":
		return AcquisitionSample, true
	case opdsRel + "acquisition/subscribe":
		return AcquisitionSubscribe, true
	case opdsRel + "image", opdsRel + "cover":
		return AcquisitionImage, true
	case opdsRel + "image/thumbnail", opdsRel + "thumbnail":
		return AcquisitionThumbnail, true
	}
	if strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		return AcquisitionImage, true
	}
	return 0, false
}

func pageRel(rel string) (PageRel, bool) {
	switch rel {
	case "next":
		return PageNext, true
	case "previous", "prev":
		return PagePrevious, true
	case "up":
		return PageUp, true
	case "start":
		return PageStart, true
	}
	return "", false
}

func isAtom(mediaType string) bool {
	return strings.Contains(strings.ToLower(mediaType), "application/atom+xml")
}

func parseBase(docURL string) *url.URL {
	if docURL == "" {
		return nil
	}
	u, err := url.Parse(docURL)
	if err != nil {
		return nil
	}
	return u
}

// resolve makes href absolute against base. Unparseable hrefs are kept as-is.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
