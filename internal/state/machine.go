package state

import (
	"errors"
	"fmt"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/events"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/transfer"
)

var (
	ErrSearchUnavailable = feed.ErrNoSearch
	ErrEmptyQuery        = errors.New("search query is empty")
	ErrNoSuchLink        = errors.New("no such page link")
	ErrNotSelectable     = errors.New("entry has nothing to open or download")
	ErrUnknownConnection = config.ErrUnknownConnection
	ErrNotLocal          = errors.New("not in the local directory")
)

// Submitter is the worker pool as seen by the machine.
type Submitter interface {
	Submit(req transfer.Request)
	Cancel(seq uint64)
}

// Options configures a Machine.
type Options struct {
	Connections []config.Connection
	DownloadDir string
	List        localfs.ListOptions
	// EventBus receives download and navigation events. May be nil.
	EventBus *events.EventBus
	Logger   *logging.Logger
}

// session is one back-stack; the top is the last element.
type session struct {
	stack []Location
}

func (s *session) top() Location {
	return s.stack[len(s.stack)-1]
}

// pendingRequest is the navigation request whose answer is awaited.
type pendingRequest struct {
	seq   uint64
	kind  transfer.RequestKind
	loc   Location
	query string
}

// Machine is the navigation state machine. It is not safe for concurrent
// use: every method must be called from the interactive loop.
type Machine struct {
	pool        Submitter
	connections []config.Connection
	downloadDir string
	listOpts    localfs.ListOptions
	bus         *events.EventBus
	logger      *logging.Logger

	sessions map[string]*session
	active   string
	current  LoadState
	pending  *pendingRequest
	nextSeq  uint64

	filter    string
	downloads *transfer.Queue
}

// New creates a machine whose only location is the home location: the first
// connection's root, or the download directory when none is configured.
// The home location starts loading immediately.
func New(pool Submitter, opts Options) *Machine {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	m := &Machine{
		pool:        pool,
		connections: append([]config.Connection(nil), opts.Connections...),
		downloadDir: opts.DownloadDir,
		listOpts:    opts.List,
		bus:         opts.EventBus,
		logger:      opts.Logger,
		sessions:    make(map[string]*session),
		downloads:   transfer.NewQueue(opts.EventBus),
	}

	home := Local(m.downloadDir)
	if len(m.connections) > 0 {
		home = Remote(m.connections[0].Name, m.connections[0].URL)
	}
	m.sessions[home.SessionKey()] = &session{stack: []Location{home}}
	m.active = home.SessionKey()
	m.load(home)
	return m
}

func (m *Machine) session() *session {
	return m.sessions[m.active]
}

func (m *Machine) allocSeq() uint64 {
	m.nextSeq++
	return m.nextSeq
}

// Location returns the top of the active back-stack.
func (m *Machine) Location() Location {
	return m.session().top()
}

// Depth returns the size of the active back-stack.
func (m *Machine) Depth() int {
	return len(m.session().stack)
}

// State returns the current load state, unfiltered.
func (m *Machine) State() LoadState {
	return m.current
}

// Pending returns the awaited navigation seq, if any.
func (m *Machine) Pending() (uint64, bool) {
	if m.pending == nil {
		return 0, false
	}
	return m.pending.seq, true
}

// Open pushes loc onto its session's back-stack, makes that session active
// and loads it. Any filter is cleared.
func (m *Machine) Open(loc Location) {
	key := loc.SessionKey()
	s, ok := m.sessions[key]
	if !ok {
		s = &session{}
		m.sessions[key] = s
	}
	s.stack = append(s.stack, loc)
	m.active = key
	m.filter = ""
	m.load(loc)
}

// GoBack pops the active back-stack and re-loads the new top. It is a no-op
// returning false when only the root is left.
func (m *Machine) GoBack() bool {
	s := m.session()
	if len(s.stack) <= 1 {
		return false
	}
	s.stack = s.stack[:len(s.stack)-1]
	m.filter = ""
	m.load(s.top())
	return true
}

// Reload re-loads the current location without touching the back-stack.
func (m *Machine) Reload() {
	m.load(m.Location())
}

// load supersedes any pending navigation and starts loading loc.
func (m *Machine) load(loc Location) {
	if m.pending != nil {
		m.pool.Cancel(m.pending.seq)
		m.pending = nil
	}
	seq := m.allocSeq()

	if !loc.IsRemote() {
		m.loadLocal(seq, loc)
		return
	}

	conn, _ := m.connection(loc.Connection)
	m.pending = &pendingRequest{seq: seq, kind: transfer.FetchPage, loc: loc}
	m.current = LoadState{Kind: Loading}
	m.logger.Debug().Uint64("seq", seq).Str("location", loc.String()).Msg("loading")
	m.pool.Submit(transfer.Request{
		Seq:        seq,
		Kind:       transfer.FetchPage,
		Connection: conn,
		URL:        loc.URL,
	})
}

// loadLocal lists a directory inline. Opening the local directory also
// clears finished downloads; their files now show up in the listing.
func (m *Machine) loadLocal(seq uint64, loc Location) {
	m.current = LoadState{Kind: Loading}
	files, err := localfs.List(loc.Path, m.listOpts)
	if err != nil {
		m.setFailed(loc, transfer.Wrap("list", err))
		return
	}
	if n := m.downloads.ClearFinished(); n > 0 {
		m.logger.Debug().Int("count", n).Msg("cleared finished downloads")
	}
	m.current = LoadState{Kind: Loaded, Files: files}
	m.logger.Debug().Uint64("seq", seq).Str("path", loc.Path).Int("files", len(files)).Msg("listed")
	m.bus.PublishNavigation(events.EventLocationChanged, loc.String(), "")
}

// Search submits query against the loaded feed's search endpoint. The
// result is pushed as a SearchResult location only when it succeeds.
func (m *Machine) Search(query string) error {
	if query == "" {
		return ErrEmptyQuery
	}
	loc := m.Location()
	if !m.current.HasFeed() || !loc.IsRemote() || !m.current.Feed.CanSearch() {
		return ErrSearchUnavailable
	}
	f := m.current.Feed

	if m.pending != nil {
		m.pool.Cancel(m.pending.seq)
	}
	seq := m.allocSeq()
	conn, _ := m.connection(loc.Connection)
	m.pending = &pendingRequest{seq: seq, kind: transfer.Search, loc: loc, query: query}
	m.current = LoadState{Kind: Loading}
	m.pool.Submit(transfer.Request{
		Seq:               seq,
		Kind:              transfer.Search,
		Connection:        conn,
		Query:             query,
		SearchTemplate:    f.SearchTemplate,
		SearchDescription: f.SearchDescription,
		BaseURL:           f.URL,
	})
	return nil
}

// OpenLink follows a pagination link of the loaded feed.
func (m *Machine) OpenLink(rel feed.PageRel) error {
	if !m.current.HasFeed() {
		return ErrNoSuchLink
	}
	href, ok := m.current.Feed.PageLink(rel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchLink, rel)
	}
	m.Open(Remote(m.Location().Connection, href))
	return nil
}

// SelectEntry opens a navigation entry or starts downloading a
// downloadable one. It returns the download seq when one was started.
func (m *Machine) SelectEntry(entry feed.Entry) (uint64, error) {
	if entry.IsNavigation() {
		m.Open(Remote(m.Location().Connection, entry.Navigation.Href))
		return 0, nil
	}
	if link, ok := entry.PreferredDownload(); ok {
		return m.Download(entry, link)
	}
	return 0, ErrNotSelectable
}

// OnMessage applies a worker message. It returns whether visible state
// changed. Messages for seqs that are neither the pending navigation nor a
// live download are discarded.
func (m *Machine) OnMessage(msg transfer.Message) bool {
	seq := msg.Sequence()
	if m.downloads.Tracking(seq) {
		return m.downloads.Apply(msg)
	}
	if m.pending == nil || seq != m.pending.seq {
		m.logger.Debug().Uint64("seq", seq).Msg("discarding stale message")
		return false
	}

	p := m.pending
	switch msg := msg.(type) {
	case transfer.Success:
		m.pending = nil
		loc := p.loc
		if p.kind == transfer.Search {
			loc = SearchAt(p.loc.Connection, p.query, msg.Feed.URL)
			s := m.sessions[loc.SessionKey()]
			s.stack = append(s.stack, loc)
			m.active = loc.SessionKey()
		}
		m.current = LoadState{Kind: Loaded, Feed: msg.Feed}
		m.bus.PublishNavigation(events.EventLocationChanged, loc.String(), "")
		return true
	case transfer.Failure:
		m.pending = nil
		m.setFailed(p.loc, msg.Err)
		return true
	default:
		// Navigation requests do not report progress.
		return false
	}
}

func (m *Machine) setFailed(loc Location, err *transfer.Error) {
	m.current = LoadState{Kind: Failed, Message: err.Error(), ErrKind: err.Kind}
	m.logger.Warn().Str("location", loc.String()).Str("kind", err.Kind.String()).Err(err.Err).Msg("navigation failed")
	m.bus.PublishNavigation(events.EventNavigationError, loc.String(), m.current.Message)
}

// Snapshot returns the state to render. Local listings are narrowed by the
// active filter.
func (m *Machine) Snapshot() Snapshot {
	st := m.current
	if st.Kind == Loaded && st.Files != nil && m.filter != "" {
		st.Files = localfs.Filter(st.Files, m.filter)
	}
	return Snapshot{
		Location:      m.Location(),
		Depth:         m.Depth(),
		State:         st,
		Filter:        m.filter,
		Downloads:     m.downloads.Tasks(),
		Connections:   append([]config.Connection(nil), m.connections...),
		ActiveSession: m.active,
	}
}
