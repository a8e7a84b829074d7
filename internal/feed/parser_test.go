package feed

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

const catalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opds="http://opds-spec.org/2010/catalog" xmlns:dc="http://purl.org/dc/terms/">
  <id>urn:catalog:root</id>
  <title>Example Library</title>
  <updated>2024-05-01T10:00:00Z</updated>
  <link rel="self" href="/opds/root.xml" type="application/atom+xml;profile=opds-catalog"/>
  <link rel="start" href="/opds/root.xml" type="application/atom+xml"/>
  <link rel="next" href="page2.xml" type="application/atom+xml"/>
  <link rel="next" href="page3.xml" type="application/atom+xml"/>
  <link rel="prev" href="page0.xml" type="application/atom+xml"/>
  <link rel="search" href="/opds/search.xml" type="application/opensearchdescription+xml"/>
  <link rel="search" href="/opds/search?q={searchTerms}" type="application/atom+xml"/>
  <opds:unknownThing foo="bar"><nested/></opds:unknownThing>
  <entry>
    <id>urn:book:1</id>
    <title>First</title>
    <author><name>Ann Author</name></author>
    <author><name>Bob Writer</name></author>
    <category term="fic" label="Fiction"/>
    <summary type="html">&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;&lt;p&gt;Second&lt;/p&gt;</summary>
    <dc:language>en</dc:language>
    <link rel="http://opds-spec.org/acquisition/buy" href="/buy/1" type="text/html"/>
    <link rel="http://opds-spec.org/acquisition/open-access" href="/files/1.epub" type="application/epub+zip"/>
    <link rel="http://opds-spec.org/image" href="/covers/1.jpg" type="image/jpeg"/>
  </entry>
  <entry>
    <id>urn:book:2</id>
    <title>Second</title>
    <link rel="http://opds-spec.org/acquisition/buy" href="/buy/2" type="text/html"/>
    <link rel="http://opds-spec.org/acquisition/buy" href="https://shop.example.com/2" type="text/html"/>
  </entry>
  <entry>
    <id>urn:nav:3</id>
    <title>Third</title>
    <content type="xhtml"><div xmlns="http://www.w3.org/1999/xhtml">Sub <em>catalog</em></div></content>
    <link rel="subsection" href="sub/3.xml" type="application/atom+xml;profile=opds-catalog;kind=navigation"/>
  </entry>
</feed>`

func mustParse(t *testing.T, data, docURL string) *Feed {
	t.Helper()
	f, err := Parse([]byte(data), docURL)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return f
}

func TestParsePreservesEntryOrder(t *testing.T) {
	f := mustParse(t, catalogXML, "https://books.example.com/opds/root.xml")

	want := []string{"urn:book:1", "urn:book:2", "urn:nav:3"}
	if len(f.Entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(f.Entries))
	}
	for i, id := range want {
		if f.Entries[i].ID != id {
			t.Errorf("Entry %d: expected id %s, got %s", i, id, f.Entries[i].ID)
		}
	}
	if f.Title != "Example Library" {
		t.Errorf("Expected title 'Example Library', got %q", f.Title)
	}
	if f.Updated.IsZero() {
		t.Error("Expected updated time to be parsed")
	}
}

func TestParsePaginationFirstWinsAndAliases(t *testing.T) {
	f := mustParse(t, catalogXML, "https://books.example.com/opds/root.xml")

	tests := []struct {
		rel  PageRel
		want string
	}{
		{PageNext, "https://books.example.com/opds/page2.xml"},
		{PagePrevious, "https://books.example.com/opds/page0.xml"},
		{PageStart, "https://books.example.com/opds/root.xml"},
	}
	for _, tt := range tests {
		got, ok := f.PageLink(tt.rel)
		if !ok || got != tt.want {
			t.Errorf("PageLink(%s) = %q, %v; want %q", tt.rel, got, ok, tt.want)
		}
	}
	if _, ok := f.PageLink(PageUp); ok {
		t.Error("Expected no up link")
	}
	if len(f.Pagination) != 3 {
		t.Errorf("Expected 3 pagination links, got %d", len(f.Pagination))
	}
	for rel := range f.Pagination {
		switch rel {
		case PageNext, PagePrevious, PageUp, PageStart:
		default:
			t.Errorf("Unexpected pagination rel %q", rel)
		}
	}
	if len(f.Links) != 1 || f.Links[0].Rel != "self" {
		t.Errorf("Expected only the self link in Links, got %+v", f.Links)
	}
}

func TestParseSearchEndpoints(t *testing.T) {
	f := mustParse(t, catalogXML, "https://books.example.com/opds/root.xml")

	if f.SearchDescription != "https://books.example.com/opds/search.xml" {
		t.Errorf("Unexpected search description %q", f.SearchDescription)
	}
	if f.SearchTemplate != "/opds/search?q={searchTerms}" {
		t.Errorf("Expected raw template, got %q", f.SearchTemplate)
	}
	if !f.CanSearch() {
		t.Error("Expected CanSearch")
	}
	got, err := ExpandTemplate(f.SearchTemplate, "war and peace", parseBase(f.URL))
	if err != nil {
		t.Fatalf("ExpandTemplate failed: %v", err)
	}
	if got != "https://books.example.com/opds/search?q=war%20and%20peace" {
		t.Errorf("Unexpected search URL %q", got)
	}
}

func TestEntryClassification(t *testing.T) {
	f := mustParse(t, catalogXML, "https://books.example.com/opds/root.xml")
	first, buyOnly, nav := f.Entries[0], f.Entries[1], f.Entries[2]

	if !first.Downloadable() {
		t.Error("Entry with an open-access link among others should be downloadable")
	}
	if buyOnly.Downloadable() {
		t.Error("Entry with only buy links must not be downloadable")
	}
	if _, ok := buyOnly.PreferredDownload(); ok {
		t.Error("Expected no preferred download for buy-only entry")
	}

	link, ok := first.PreferredDownload()
	if !ok {
		t.Fatal("Expected preferred download")
	}
	if link.Href != "https://books.example.com/files/1.epub" || link.Type != "application/epub+zip" {
		t.Errorf("Unexpected preferred link %+v", link)
	}
	if cover, ok := first.Cover(); !ok || cover != "https://books.example.com/covers/1.jpg" {
		t.Errorf("Unexpected cover %q", cover)
	}
	if first.AuthorLine() != "Ann Author, Bob Writer" {
		t.Errorf("Unexpected author line %q", first.AuthorLine())
	}
	if len(first.Categories) != 1 || first.Categories[0] != "Fiction" {
		t.Errorf("Unexpected categories %v", first.Categories)
	}
	if first.Summary != "Hello world\nSecond" {
		t.Errorf("Unexpected summary %q", first.Summary)
	}

	if !nav.IsNavigation() {
		t.Fatal("Expected navigation entry")
	}
	if nav.Navigation.Href != "https://books.example.com/opds/sub/3.xml" {
		t.Errorf("Unexpected navigation href %q", nav.Navigation.Href)
	}
	if nav.Content != "Sub catalog" {
		t.Errorf("Unexpected xhtml content %q", nav.Content)
	}
}

func TestSampleOnlyIsDownloadable(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom"><id>x</id><title>t</title>
<entry><id>e</id><title>Sample</title>
<link rel="http://opds-spec.org/acquisition/borrow" href="http://h/borrow"/>
<link rel="http://opds-spec.org/acquisition/sample" href="http://h/sample.pdf" type="application/pdf"/>
</entry></feed>`
	f := mustParse(t, doc, "")
	e := f.Entries[0]
	if !e.Downloadable() {
		t.Error("Expected sample entry to be downloadable")
	}
	link, _ := e.PreferredDownload()
	if link.Kind != AcquisitionSample {
		t.Errorf("Expected sample link, got %s", link.Kind)
	}
	if len(e.Downloads()) != 1 {
		t.Errorf("Expected 1 download link, got %d", len(e.Downloads()))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		reason ParseReason
	}{
		{"empty", "   ", ReasonMalformed},
		{"malformed", `<feed xmlns="http://www.w3.org/2005/Atom"><id>x</id>`, ReasonMalformed},
		{"rss", `<rss version="2.0"><channel/></rss>`, ReasonUnsupportedNamespace},
		{"no namespace", `<feed><id>x</id></feed>`, ReasonUnsupportedNamespace},
		{"entry root", `<entry xmlns="http://www.w3.org/2005/Atom"><id>x</id></entry>`, ReasonUnsupportedNamespace},
		{"missing id", `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>a</title><link href="/a"/></entry></feed>`, ReasonMissingField},
		{"missing title", `<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>a</id><link href="/a"/></entry></feed>`, ReasonMissingField},
		{"missing link", `<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>a</id><title>A</title></entry></feed>`, ReasonMissingLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "")
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected ParseError, got %v", err)
			}
			if perr.Reason != tt.reason {
				t.Errorf("Expected reason %s, got %s", tt.reason, perr.Reason)
			}
		})
	}
}

func TestParseLegacyCharsetAndEntities(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<feed xmlns=\"http://www.w3.org/2005/Atom\"><id>x</id><title>Caf\xe9&nbsp;List</title></feed>"
	f := mustParse(t, doc, "")
	if f.Title != "Café List" {
		t.Errorf("Expected Latin-1 decoding and collapsed nbsp, got %q", f.Title)
	}
}

func TestParseOpenSearch(t *testing.T) {
	doc := `<?xml version="1.0"?>
<OpenSearchDescription xmlns="http://a9.com/-/spec/opensearch/1.1/">
  <ShortName>Books</ShortName>
  <Url type="text/html" template="https://h/search.html?q={searchTerms}"/>
  <Url type="application/atom+xml;profile=opds-catalog" template="https://h/opds/search/{searchTerms}?page={startPage?}"/>
</OpenSearchDescription>`
	tmpl, err := ParseOpenSearch([]byte(doc))
	if err != nil {
		t.Fatalf("ParseOpenSearch failed: %v", err)
	}
	if tmpl != "https://h/opds/search/{searchTerms}?page={startPage?}" {
		t.Errorf("Unexpected template %q", tmpl)
	}

	got, err := ExpandTemplate(tmpl, "dune", nil)
	if err != nil {
		t.Fatalf("ExpandTemplate failed: %v", err)
	}
	if got != "https://h/opds/search/dune?page=" {
		t.Errorf("Unexpected expansion %q", got)
	}

	if _, err := ParseOpenSearch([]byte(`<OpenSearchDescription><Url type="text/html" template="x"/></OpenSearchDescription>`)); err == nil {
		t.Error("Expected error when no Atom template is present")
	}
}

func TestExpandTemplateRelative(t *testing.T) {
	base, _ := url.Parse("https://h/opds/search.xml")
	got, err := ExpandTemplate("find?q={searchTerms}&n={count}", "a&b", base)
	if err != nil {
		t.Fatalf("ExpandTemplate failed: %v", err)
	}
	if got != "https://h/opds/find?q=a%26b&n=20" {
		t.Errorf("Unexpected expansion %q", got)
	}
	if _, err := ExpandTemplate("https://h/all", "x", nil); !errors.Is(err, ErrNoSearchTerms) {
		t.Errorf("Expected ErrNoSearchTerms, got %v", err)
	}
}

func TestParseStripsTerminalControls(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom"><id>x</id><title type="html">Catalog&amp;#27;[31m</title>
<entry><id>e</id>
<title type="html">Book&amp;#27;]0;pwned&amp;#7;</title>
<summary type="html">Clear&amp;#27;[2J screen&lt;br/&gt;next line</summary>
<author><name>Ann&#x9b;31m</name></author>
<link rel="http://opds-spec.org/acquisition" href="/b.epub" title="EPUB&amp;#27;[5m"/>
</entry></feed>`
	f := mustParse(t, doc, "https://h/opds")
	e := f.Entries[0]

	fields := map[string]string{
		"feed title": f.Title,
		"title":      e.Title,
		"summary":    e.Summary,
		"author":     e.AuthorLine(),
		"link title": e.Acquisitions[0].Title,
	}
	for name, value := range fields {
		if strings.ContainsAny(value, "\x1b\x07\u009b") {
			t.Errorf("Expected %s without control characters, got %q", name, value)
		}
	}
	if e.Title != "Book]0;pwned" {
		t.Errorf("Expected title text to survive, got %q", e.Title)
	}
	if e.Summary != "Clear[2J screen\nnext line" {
		t.Errorf("Expected summary line breaks to survive, got %q", e.Summary)
	}
}

func TestParsePathSearchTemplateAndXMLBase(t *testing.T) {
	doc := `<feed xmlns="http://www.w3.org/2005/Atom" xml:base="https://mirror.example.org/opds/"><id>x</id><title>t</title>
<link rel="search" type="application/atom+xml" href="https://h/opds/search/{searchTerms}"/>
<entry><id>e</id><title>Book</title>
<link rel="http://opds-spec.org/acquisition" href="files/b.epub" type="application/epub+zip"/>
</entry></feed>`
	f := mustParse(t, doc, "https://h/opds/root.xml")
	if f.SearchTemplate != "https://h/opds/search/{searchTerms}" {
		t.Errorf("Expected template braces to survive, got %q", f.SearchTemplate)
	}
	got, err := ExpandTemplate(f.SearchTemplate, "dune", nil)
	if err != nil {
		t.Fatalf("ExpandTemplate failed: %v", err)
	}
	if got != "https://h/opds/search/dune" {
		t.Errorf("Unexpected expansion %q", got)
	}
	if href := f.Entries[0].Acquisitions[0].Href; href != "https://mirror.example.org/opds/files/b.epub" {
		t.Errorf("Expected href resolved against xml:base, got %q", href)
	}
}
