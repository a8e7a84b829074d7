package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
)

var (
	// ErrNoSearch is returned when a catalog advertises no search endpoint.
	ErrNoSearch = errors.New("catalog does not offer search")

	// ErrNoSearchTerms is returned for templates without a {searchTerms} slot.
	ErrNoSearchTerms = errors.New("search template has no {searchTerms} parameter")
)

type xmlOpenSearch struct {
	XMLName xml.Name
	URLs    []struct {
		Type     string `xml:"type,attr"`
		Rel      string `xml:"rel,attr"`
		Template string `xml:"template,attr"`
	} `xml:"Url"`
}

// decodeRoot decodes a whole document into v, understanding legacy charsets
// and HTML named entities.
func decodeRoot(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return parseErrorf(ReasonMalformed, "empty document")
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return parseErrorf(ReasonMalformed, "no root element")
		}
		return &ParseError{Reason: ReasonMalformed, Err: err}
	}
	return nil
}

// ParseOpenSearch extracts the Atom result template from an OpenSearch
// description document. The template is returned unexpanded.
func ParseOpenSearch(data []byte) (string, error) {
	var raw xmlOpenSearch
	if err := decodeRoot(data, &raw); err != nil {
		return "", err
	}
	if raw.XMLName.Local != "OpenSearchDescription" {
		return "", parseErrorf(ReasonUnsupportedNamespace, "root element %s is not OpenSearchDescription", raw.XMLName.Local)
	}
	for _, u := range raw.URLs {
		if !isAtom(u.Type) {
			continue
		}
		if u.Rel != "" && u.Rel != "results" {
			continue
		}
		if t := strings.TrimSpace(u.Template); t != "" {
			return t, nil
		}
	}
	return "", parseErrorf(ReasonMissingLink, "no Atom Url template")
}

var optionalParam = regexp.MustCompile(`\{[A-Za-z:]+\?\}`)

// ExpandTemplate fills an OpenSearch template with query and resolves the
// result against base (which may be nil for absolute templates).
func ExpandTemplate(template, query string, base *url.URL) (string, error) {
	if !strings.Contains(template, "{searchTerms") {
		return "", ErrNoSearchTerms
	}
	terms := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	expanded := strings.NewReplacer(
		"{searchTerms}", terms,
		"{searchTerms?}", terms,
		"{startPage}", "1",
		"{startIndex}", "0",
		"{count}", "20",
		"{language}", "*",
		"{inputEncoding}", "UTF-8",
		"{outputEncoding}", "UTF-8",
	).Replace(template)
	expanded = optionalParam.ReplaceAllString(expanded, "")

	ref, err := url.Parse(expanded)
	if err != nil {
		return "", err
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String(), nil
}
