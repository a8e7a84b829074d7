package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/transfer"
)

// fakePool records requests instead of running them.
type fakePool struct {
	submitted []transfer.Request
	cancelled []uint64
}

func (p *fakePool) Submit(req transfer.Request) { p.submitted = append(p.submitted, req) }
func (p *fakePool) Cancel(seq uint64)           { p.cancelled = append(p.cancelled, seq) }

func (p *fakePool) last() transfer.Request {
	return p.submitted[len(p.submitted)-1]
}

var testConnections = []config.Connection{
	{Name: "gutenberg", URL: "https://gutenberg.example/opds"},
	{Name: "private", URL: "https://private.example/opds", Username: "alice"},
}

func newTestMachine(t *testing.T, conns []config.Connection) (*Machine, *fakePool, string) {
	t.Helper()
	dir := t.TempDir()
	pool := &fakePool{}
	m := New(pool, Options{Connections: conns, DownloadDir: dir})
	return m, pool, dir
}

func pageFeed(url, title string) *feed.Feed {
	return &feed.Feed{
		URL:   url,
		Title: title,
		Pagination: map[feed.PageRel]string{
			feed.PageNext: url + "?page=2",
		},
		SearchTemplate: "https://gutenberg.example/search?q={searchTerms}",
	}
}

func succeed(m *Machine, req transfer.Request, f *feed.Feed) bool {
	return m.OnMessage(transfer.Success{Seq: req.Seq, Kind: req.Kind, Feed: f})
}

func TestNewStartsAtFirstConnection(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)

	if m.Depth() != 1 {
		t.Errorf("Expected depth 1, got %d", m.Depth())
	}
	if loc := m.Location(); loc != Remote("gutenberg", "https://gutenberg.example/opds") {
		t.Errorf("Expected home at first connection, got %+v", loc)
	}
	if m.State().Kind != Loading {
		t.Errorf("Expected Loading, got %v", m.State().Kind)
	}
	if len(pool.submitted) != 1 || pool.submitted[0].Kind != transfer.FetchPage {
		t.Fatalf("Expected one initial fetch, got %+v", pool.submitted)
	}
	if seq, ok := m.Pending(); !ok || seq != pool.submitted[0].Seq {
		t.Errorf("Expected pending seq %d, got %d (%v)", pool.submitted[0].Seq, seq, ok)
	}
}

func TestNewWithoutConnectionsStartsLocal(t *testing.T) {
	m, pool, dir := newTestMachine(t, nil)

	if loc := m.Location(); loc != Local(dir) {
		t.Errorf("Expected local home, got %+v", loc)
	}
	if len(pool.submitted) != 0 {
		t.Errorf("Expected no worker request for local listing, got %d", len(pool.submitted))
	}
	if m.State().Kind != Loaded {
		t.Errorf("Expected Loaded, got %v", m.State().Kind)
	}
	if _, ok := m.Pending(); ok {
		t.Error("Expected nothing pending after a local listing")
	}
}

func TestLatestOpenWins(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))
	reqA := pool.last()
	m.Open(Remote("gutenberg", "https://gutenberg.example/b"))
	reqB := pool.last()

	// B answers first, then the stale A.
	if !succeed(m, reqB, pageFeed(reqB.URL, "B")) {
		t.Fatal("Expected B's result to apply")
	}
	if succeed(m, reqA, pageFeed(reqA.URL, "A")) {
		t.Error("Expected A's late result to be discarded")
	}
	if st := m.State(); !st.HasFeed() || st.Feed.Title != "B" {
		t.Errorf("Expected B to be shown, got %+v", st)
	}

	// A superseded request is also cancelled in the pool.
	found := false
	for _, seq := range pool.cancelled {
		if seq == reqA.Seq {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected seq %d to be cancelled, got %v", reqA.Seq, pool.cancelled)
	}
}

func TestLatestOpenWinsInOrder(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)

	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))
	reqA := pool.last()
	m.Open(Remote("gutenberg", "https://gutenberg.example/b"))
	reqB := pool.last()

	// A's failure arrives first and must not show up.
	if m.OnMessage(transfer.Failure{Seq: reqA.Seq, Kind: transfer.FetchPage, Err: &transfer.Error{Kind: transfer.KindTransport, Op: "fetch"}}) {
		t.Error("Expected A's failure to be discarded")
	}
	if m.State().Kind != Loading {
		t.Errorf("Expected still Loading B, got %v", m.State().Kind)
	}
	succeed(m, reqB, pageFeed(reqB.URL, "B"))
	if m.State().Feed.Title != "B" {
		t.Errorf("Expected B, got %s", m.State().Feed.Title)
	}
}

func TestGoBack(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	before := len(pool.submitted)

	if m.GoBack() {
		t.Error("Expected GoBack at root to be a no-op")
	}
	if m.Depth() != 1 || len(pool.submitted) != before {
		t.Errorf("Expected no change at root, depth %d, %d requests", m.Depth(), len(pool.submitted))
	}

	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))
	m.Open(Remote("gutenberg", "https://gutenberg.example/b"))
	if m.Depth() != 3 {
		t.Fatalf("Expected depth 3, got %d", m.Depth())
	}

	if !m.GoBack() {
		t.Fatal("Expected GoBack to pop")
	}
	if m.Depth() != 2 {
		t.Errorf("Expected depth 2, got %d", m.Depth())
	}
	req := pool.last()
	if req.Kind != transfer.FetchPage || req.URL != "https://gutenberg.example/a" {
		t.Errorf("Expected re-fetch of the new top, got %+v", req)
	}
	if m.State().Kind != Loading {
		t.Errorf("Expected Loading, got %v", m.State().Kind)
	}
}

func TestFailureKeepsStack(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))
	req := pool.last()

	m.OnMessage(transfer.Failure{Seq: req.Seq, Kind: transfer.FetchPage, Err: &transfer.Error{
		Kind: transfer.KindParse, Op: "fetch", Err: errors.New("bad xml"),
	}})

	st := m.State()
	if st.Kind != Failed || st.Message == "" || st.ErrKind != transfer.KindParse {
		t.Errorf("Expected parse error state, got %+v", st)
	}
	if m.Depth() != 2 {
		t.Errorf("Expected back-stack untouched at depth 2, got %d", m.Depth())
	}
	if _, ok := m.Pending(); ok {
		t.Error("Expected pending cleared")
	}
}

func TestStaleMessageDiscarded(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))
	before := m.Snapshot()

	msgs := []transfer.Message{
		transfer.Progress{Seq: 999, Received: 5},
		transfer.Success{Seq: 999, Kind: transfer.FetchPage, Feed: pageFeed("x", "X")},
		transfer.Failure{Seq: 999, Err: &transfer.Error{Kind: transfer.KindTransport}},
	}
	for _, msg := range msgs {
		if m.OnMessage(msg) {
			t.Errorf("Expected %T for unknown seq to be discarded", msg)
		}
	}
	after := m.Snapshot()
	if after.State.Feed != before.State.Feed || after.Depth != before.Depth || len(after.Downloads) != 0 {
		t.Error("Expected no visible change")
	}
}

func TestSearchPushesOnSuccess(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	root := pageFeed("https://gutenberg.example/opds", "Root")
	succeed(m, pool.last(), root)

	if err := m.Search("moby"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	req := pool.last()
	if req.Kind != transfer.Search || req.Query != "moby" || req.SearchTemplate != root.SearchTemplate {
		t.Fatalf("Unexpected search request %+v", req)
	}
	if m.Depth() != 1 {
		t.Errorf("Expected no push before the result, got depth %d", m.Depth())
	}

	results := &feed.Feed{URL: "https://gutenberg.example/search?q=moby", Title: "Results"}
	m.OnMessage(transfer.Success{Seq: req.Seq, Kind: transfer.Search, Feed: results, Query: "moby"})

	if m.Depth() != 2 {
		t.Fatalf("Expected search result pushed, got depth %d", m.Depth())
	}
	loc := m.Location()
	if loc.Kind != SearchResult || loc.Query != "moby" || loc.URL != results.URL {
		t.Errorf("Unexpected search location %+v", loc)
	}

	// Search results are poppable back to the page searched from.
	m.GoBack()
	if m.Location() != Remote("gutenberg", "https://gutenberg.example/opds") {
		t.Errorf("Expected to return to root, got %+v", m.Location())
	}
}

func TestSearchFailureDoesNotPush(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	m.Search("moby")
	req := pool.last()
	m.OnMessage(transfer.Failure{Seq: req.Seq, Kind: transfer.Search, Err: &transfer.Error{Kind: transfer.KindTransport, Op: "search"}})

	if m.Depth() != 1 {
		t.Errorf("Expected depth 1 after failed search, got %d", m.Depth())
	}
	if m.State().Kind != Failed {
		t.Errorf("Expected error state, got %v", m.State().Kind)
	}
}

func TestSearchUnavailable(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)

	if err := m.Search("x"); !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("Expected ErrSearchUnavailable while loading, got %v", err)
	}
	succeed(m, pool.last(), &feed.Feed{URL: "https://gutenberg.example/opds"})
	if err := m.Search("x"); !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("Expected ErrSearchUnavailable without endpoint, got %v", err)
	}
	if err := m.Search(""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestOpenLink(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	if err := m.OpenLink(feed.PagePrevious); !errors.Is(err, ErrNoSuchLink) {
		t.Errorf("Expected ErrNoSuchLink, got %v", err)
	}
	if err := m.OpenLink(feed.PageNext); err != nil {
		t.Fatalf("OpenLink failed: %v", err)
	}
	if req := pool.last(); req.URL != "https://gutenberg.example/opds?page=2" {
		t.Errorf("Expected next page fetch, got %s", req.URL)
	}
	if m.Depth() != 2 {
		t.Errorf("Expected depth 2, got %d", m.Depth())
	}
}

func TestSelectEntry(t *testing.T) {
	m, pool, dir := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	nav := feed.Entry{ID: "n", Title: "Fiction", Navigation: &feed.Link{Href: "https://gutenberg.example/fiction"}}
	if _, err := m.SelectEntry(nav); err != nil {
		t.Fatalf("SelectEntry(nav) failed: %v", err)
	}
	if m.Location().URL != "https://gutenberg.example/fiction" {
		t.Errorf("Expected navigation, got %+v", m.Location())
	}
	depth := m.Depth()

	book := feed.Entry{ID: "b", Title: "Moby Dick", Acquisitions: []feed.AcquisitionLink{
		{Kind: feed.AcquisitionBuy, Href: "https://shop.example/moby"},
		{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/moby.epub", Type: "application/epub+zip"},
	}}
	seq, err := m.SelectEntry(book)
	if err != nil {
		t.Fatalf("SelectEntry(book) failed: %v", err)
	}
	req := pool.last()
	if req.Kind != transfer.Download || req.Seq != seq || req.URL != "https://gutenberg.example/moby.epub" || req.DestDir != dir {
		t.Errorf("Unexpected download request %+v", req)
	}
	if m.Depth() != depth {
		t.Error("Expected download not to change location")
	}

	buyOnly := feed.Entry{ID: "c", Title: "Paid", Acquisitions: []feed.AcquisitionLink{
		{Kind: feed.AcquisitionBuy, Href: "https://shop.example/paid"},
	}}
	if _, err := m.SelectEntry(buyOnly); !errors.Is(err, ErrNotSelectable) {
		t.Errorf("Expected ErrNotSelectable for buy-only entry, got %v", err)
	}
}

func TestDownloadIndependentOfNavigation(t *testing.T) {
	m, pool, dir := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	book := feed.Entry{ID: "b", Title: "Moby Dick"}
	link := feed.AcquisitionLink{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/moby.epub"}
	seq, _ := m.Download(book, link)

	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))
	nav := pool.last()

	if !m.OnMessage(transfer.Progress{Seq: seq, Received: 10, Total: 100}) {
		t.Error("Expected progress to update the task")
	}
	if m.State().Kind != Loading {
		t.Error("Expected download progress not to affect navigation")
	}
	m.OnMessage(transfer.Success{Seq: seq, Kind: transfer.Download, Path: filepath.Join(dir, "moby.epub"), Size: 100})
	if m.State().Kind != Loading {
		t.Error("Expected download completion not to affect navigation")
	}
	if _, ok := m.Pending(); !ok {
		t.Error("Expected navigation still pending")
	}

	succeed(m, nav, pageFeed(nav.URL, "A"))
	tasks := m.Downloads()
	if len(tasks) != 1 || tasks[0].Status != transfer.StatusCompleted {
		t.Errorf("Expected completed task, got %+v", tasks)
	}
}

func TestCancelDownloadIgnoresLateMessages(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))

	seq, _ := m.Download(feed.Entry{Title: "X"}, feed.AcquisitionLink{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/x.epub"})
	m.OnMessage(transfer.Progress{Seq: seq, Received: 10, Total: 100})

	if !m.CancelDownload(seq) {
		t.Fatal("Expected cancel to succeed")
	}
	if pool.cancelled[len(pool.cancelled)-1] != seq {
		t.Errorf("Expected pool cancel for seq %d, got %v", seq, pool.cancelled)
	}
	task := m.Downloads()[0]
	if !task.Cancelled() {
		t.Fatalf("Expected Failed(Cancelled), got %v", task.Status)
	}

	if m.OnMessage(transfer.Progress{Seq: seq, Received: 90, Total: 100}) {
		t.Error("Expected late progress to be ignored")
	}
	if m.OnMessage(transfer.Success{Seq: seq, Kind: transfer.Download, Path: "/x"}) {
		t.Error("Expected late success to be ignored")
	}
	after := m.Downloads()[0]
	if after.Received != 10 || after.Status != transfer.StatusFailed || after.Path != "" {
		t.Errorf("Expected task unchanged, got %+v", after)
	}
	if m.State().Feed == nil || m.State().Feed.Title != "Root" {
		t.Error("Expected navigation unaffected by late download messages")
	}
}

func TestDismissDownloads(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))
	link := feed.AcquisitionLink{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/x.epub"}

	a, _ := m.Download(feed.Entry{Title: "A"}, link)
	b, _ := m.Download(feed.Entry{Title: "B"}, link)
	c, _ := m.Download(feed.Entry{Title: "C"}, link)
	m.OnMessage(transfer.Success{Seq: a, Kind: transfer.Download, Path: "/a"})
	m.OnMessage(transfer.Failure{Seq: b, Kind: transfer.Download, Err: &transfer.Error{Kind: transfer.KindIO, Op: "download"}})

	stats := m.DownloadStats()
	if stats.Completed != 1 || stats.Failed != 1 || stats.Running() != 1 {
		t.Errorf("Expected 1 completed, 1 failed, 1 running, got %+v", stats)
	}

	if m.DismissDownload(c) {
		t.Error("Expected running download not to be dismissed")
	}
	if !m.DismissDownload(a) {
		t.Error("Expected finished download to be dismissed")
	}
	if n := m.DismissFinished(); n != 1 {
		t.Errorf("Expected 1 dismissed, got %d", n)
	}
	if tasks := m.Downloads(); len(tasks) != 1 || tasks[0].Seq != c {
		t.Errorf("Expected only C left, got %+v", tasks)
	}
}

func TestSessions(t *testing.T) {
	m, pool, dir := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))
	m.Open(Remote("gutenberg", "https://gutenberg.example/a"))

	if err := m.SwitchConnection("private"); err != nil {
		t.Fatalf("SwitchConnection failed: %v", err)
	}
	req := pool.last()
	if req.URL != "https://private.example/opds" || req.Connection.Username != "alice" {
		t.Errorf("Expected fetch of private root with its connection, got %+v", req)
	}
	if m.Depth() != 1 || m.ActiveSession() != "private" {
		t.Errorf("Expected fresh private session, got depth %d session %q", m.Depth(), m.ActiveSession())
	}

	m.OpenLocal()
	if m.Location() != Local(dir) || m.ActiveSession() != LocalSession {
		t.Errorf("Expected local session, got %+v", m.Location())
	}

	if err := m.SwitchConnection("gutenberg"); err != nil {
		t.Fatal(err)
	}
	if m.Depth() != 2 || m.Location().URL != "https://gutenberg.example/a" {
		t.Errorf("Expected gutenberg stack preserved, got depth %d at %+v", m.Depth(), m.Location())
	}
	if pool.last().URL != "https://gutenberg.example/a" {
		t.Errorf("Expected re-fetch of session top, got %s", pool.last().URL)
	}

	if err := m.SwitchConnection("nope"); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("Expected ErrUnknownConnection, got %v", err)
	}

	m.NextConnection()
	if m.ActiveSession() != "private" {
		t.Errorf("Expected next connection private, got %q", m.ActiveSession())
	}
	m.NextConnection()
	if m.ActiveSession() != "gutenberg" {
		t.Errorf("Expected wrap to gutenberg, got %q", m.ActiveSession())
	}
}

func TestAddConnection(t *testing.T) {
	m, _, _ := newTestMachine(t, testConnections)

	if err := m.AddConnection(config.Connection{Name: "new", URL: "https://new.example/opds"}); err != nil {
		t.Fatalf("AddConnection failed: %v", err)
	}
	if err := m.AddConnection(config.Connection{Name: "new", URL: "https://other.example/opds"}); err == nil {
		t.Error("Expected duplicate name to be rejected")
	}
	if err := m.AddConnection(config.Connection{Name: "bad", URL: "not a url"}); err == nil {
		t.Error("Expected invalid URL to be rejected")
	}
	if len(m.Connections()) != 3 {
		t.Errorf("Expected 3 connections, got %d", len(m.Connections()))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalOperations(t *testing.T) {
	m, _, dir := newTestMachine(t, nil)
	writeFile(t, filepath.Join(dir, "moby.epub"), "x")
	writeFile(t, filepath.Join(dir, "war.fb2"), "y")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	m.Reload()

	files := m.Snapshot().State.Files
	if len(files) != 3 || !files[0].IsDir {
		t.Fatalf("Expected dir first among 3 entries, got %+v", files)
	}

	if err := m.FilterLocal("MOBY"); err != nil {
		t.Fatal(err)
	}
	if got := m.Snapshot().State.Files; len(got) != 1 || got[0].Name != "moby.epub" {
		t.Errorf("Expected filtered listing, got %+v", got)
	}

	moby := localfs.FileEntry{Path: filepath.Join(dir, "moby.epub"), Name: "moby.epub"}
	if _, err := m.Rename(moby, "Moby Dick.epub"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	m.FilterLocal("")
	names := map[string]bool{}
	for _, f := range m.Snapshot().State.Files {
		names[f.Name] = true
	}
	if !names["Moby Dick.epub"] || names["moby.epub"] {
		t.Errorf("Expected listing to reflect rename, got %v", names)
	}

	war := localfs.FileEntry{Path: filepath.Join(dir, "war.fb2"), Name: "war.fb2"}
	if err := m.Delete(war); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(m.Snapshot().State.Files) != 2 {
		t.Errorf("Expected 2 entries after delete, got %d", len(m.Snapshot().State.Files))
	}

	// Missing paths are IoErrors, not panics, and the listing stays true.
	var ioErr *localfs.IoError
	if err := m.Delete(war); !errors.As(err, &ioErr) {
		t.Errorf("Expected IoError deleting missing file, got %v", err)
	}
	if _, err := m.Rename(war, "x.fb2"); !errors.As(err, &ioErr) {
		t.Errorf("Expected IoError renaming missing file, got %v", err)
	}

	sub := localfs.FileEntry{Path: filepath.Join(dir, "sub"), Name: "sub", IsDir: true}
	path, err := m.SelectFile(sub)
	if err != nil || path != "" {
		t.Fatalf("Expected directory to open, got %q, %v", path, err)
	}
	if m.Location() != Local(filepath.Join(dir, "sub")) || m.Depth() != 2 {
		t.Errorf("Expected to be in sub at depth 2, got %+v", m.Location())
	}
	m.GoBack()
	path, _ = m.SelectFile(localfs.FileEntry{Path: filepath.Join(dir, "Moby Dick.epub")})
	if path != filepath.Join(dir, "Moby Dick.epub") {
		t.Errorf("Expected file path for opener, got %q", path)
	}
}

func TestLocalOperationsNeedLocalView(t *testing.T) {
	m, _, _ := newTestMachine(t, testConnections)
	if err := m.FilterLocal("x"); !errors.Is(err, ErrNotLocal) {
		t.Errorf("Expected ErrNotLocal, got %v", err)
	}
	if err := m.Delete(localfs.FileEntry{Path: "/x"}); !errors.Is(err, ErrNotLocal) {
		t.Errorf("Expected ErrNotLocal, got %v", err)
	}
}

func TestOpenLocalClearsFinishedDownloads(t *testing.T) {
	m, pool, _ := newTestMachine(t, testConnections)
	succeed(m, pool.last(), pageFeed("https://gutenberg.example/opds", "Root"))
	link := feed.AcquisitionLink{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/x.epub"}
	done, _ := m.Download(feed.Entry{Title: "Done"}, link)
	running, _ := m.Download(feed.Entry{Title: "Running"}, link)
	m.OnMessage(transfer.Success{Seq: done, Kind: transfer.Download, Path: "/x"})

	m.OpenLocal()

	tasks := m.Downloads()
	if len(tasks) != 1 || tasks[0].Seq != running {
		t.Errorf("Expected only the running download left, got %+v", tasks)
	}
}

func TestMissingLocalDirectoryIsError(t *testing.T) {
	m, _, dir := newTestMachine(t, nil)
	m.Open(Local(filepath.Join(dir, "gone")))
	st := m.State()
	if st.Kind != Failed || st.ErrKind != transfer.KindIO {
		t.Errorf("Expected IO error state, got %+v", st)
	}
}

func TestEventsPublished(t *testing.T) {
	bus := events.NewEventBus(32)
	defer bus.Close()
	errs := bus.Subscribe(events.EventNavigationError)
	completed := bus.Subscribe(events.EventDownloadCompleted)

	pool := &fakePool{}
	m := New(pool, Options{Connections: testConnections, DownloadDir: t.TempDir(), EventBus: bus})
	m.OnMessage(transfer.Failure{Seq: pool.last().Seq, Kind: transfer.FetchPage, Err: &transfer.Error{Kind: transfer.KindTransport, Op: "fetch"}})

	select {
	case ev := <-errs:
		if ev.(*events.NavigationEvent).Message == "" {
			t.Error("Expected error message in event")
		}
	case <-time.After(time.Second):
		t.Fatal("Expected navigation error event")
	}

	seq, _ := m.Download(feed.Entry{Title: "A"}, feed.AcquisitionLink{Kind: feed.AcquisitionOpen, Href: "https://gutenberg.example/a.epub"})
	m.OnMessage(transfer.Success{Seq: seq, Kind: transfer.Download, Path: "/books/a.epub", Size: 3})
	select {
	case ev := <-completed:
		if ev.(*events.DownloadEvent).Title != "A" {
			t.Errorf("Expected event for A, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected download completed event")
	}
}
