// Package tui is the interactive catalog browser. Its Update function is the
// single consumer of worker messages: every state.Machine call happens there.
package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncopds/ncopds/internal/config"
	"github.com/ncopds/ncopds/internal/constants"
	"github.com/ncopds/ncopds/internal/credential"
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/logging"
	"github.com/ncopds/ncopds/internal/state"
	"github.com/ncopds/ncopds/internal/transfer"
)

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeRename
	modeFilter
	modeConfirmDelete
	modePassword
	modeDetails
	modeAddConnection
	modeFormats
)

// connectionFields are asked in order by the add-connection form.
var connectionFields = []struct {
	prompt string
	set    func(c *config.Connection, value string)
}{
	{"Name: ", func(c *config.Connection, v string) { c.Name = v }},
	{"Catalog URL: ", func(c *config.Connection, v string) { c.URL = v }},
	{"Username (empty for none): ", func(c *config.Connection, v string) { c.Username = v }},
}

// DirWatcher reports changes in the directory being shown.
type DirWatcher interface {
	Follow(dir string) error
	Changes() <-chan string
}

// Options wires a Model to the rest of the program.
type Options struct {
	Machine  *state.Machine
	Messages <-chan transfer.Message
	// Prompter may be nil when no connection needs a password.
	Prompter *Prompter
	// Watcher may be nil; the local view then refreshes only on demand.
	Watcher DirWatcher
	// Open launches a file in the user's application.
	Open func(path string) error
	// Refresh re-loads the current location periodically when positive.
	Refresh time.Duration
	// SaveConnection persists a connection added in the browser. When nil
	// the connection lasts for this run only.
	SaveConnection func(config.Connection) error
	Logger         *logging.Logger
}

// Model is the bubbletea model.
type Model struct {
	machine  *state.Machine
	messages <-chan transfer.Message
	prompter *Prompter
	watcher  DirWatcher
	open     func(string) error
	refresh  time.Duration
	save     func(config.Connection) error
	logger   *logging.Logger

	help    help.Model
	spinner spinner.Model
	bar     progress.Model
	input   textinput.Model

	mode       mode
	cursor     int
	taskCursor int
	lastLoc    state.Location
	watching   string

	prompt  *PasswordRequest
	prompts []PasswordRequest

	// pendingFile is the target of a rename or delete.
	pendingFile localfs.FileEntry

	newConn  config.Connection
	connStep int

	// formats are the download choices offered for formatEntry.
	formatEntry  feed.Entry
	formats      []feed.AcquisitionLink
	formatCursor int

	status    string
	statusErr bool
	statusID  int

	width  int
	height int
}

// New creates the model. The machine must already be loading its home
// location.
func New(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Open == nil {
		opts.Open = func(string) error { return errors.New("no file opener configured") }
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	ti := textinput.New()
	ti.CharLimit = 256

	return &Model{
		machine:  opts.Machine,
		messages: opts.Messages,
		prompter: opts.Prompter,
		watcher:  opts.Watcher,
		open:     opts.Open,
		refresh:  opts.Refresh,
		save:     opts.SaveConnection,
		logger:   opts.Logger,
		help:     help.New(),
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage()),
		input:    ti,
		lastLoc:  opts.Machine.Location(),
		width:    80,
		height:   24,
	}
}

// Init starts the wait commands. Each is re-issued after it delivers.
func (m *Model) Init() tea.Cmd {
	m.followLocation()
	cmds := []tea.Cmd{
		waitForMessage(m.messages),
		m.spinner.Tick,
		refreshTick(m.refresh),
	}
	if m.prompter != nil {
		cmds = append(cmds, waitForPassword(m.prompter.Requests()))
	}
	if m.watcher != nil {
		cmds = append(cmds, waitForDirChange(m.watcher.Changes()))
	}
	return tea.Batch(cmds...)
}

// Update is the interactive loop.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workerMsg:
		cmd := m.applyWorkerMessage(msg.msg)
		return m, tea.Batch(cmd, waitForMessage(m.messages))

	case poolClosedMsg:
		return m, nil

	case passwordMsg:
		m.prompts = append(m.prompts, msg.req)
		var cmd tea.Cmd
		if m.mode == modeBrowse || m.mode == modeDetails {
			cmd = m.nextPrompt()
		}
		return m, tea.Batch(cmd, waitForPassword(m.prompter.Requests()))

	case dirChangedMsg:
		loc := m.machine.Location()
		if loc.Kind == state.LocalDirectory && filepath.Clean(loc.Path) == msg.dir && m.mode == modeBrowse {
			m.machine.Reload()
			m.afterNavigation()
		}
		return m, waitForDirChange(m.watcher.Changes())

	case refreshTickMsg:
		if m.mode == modeBrowse && m.machine.State().Kind != state.Loading {
			m.logger.Debug().Str("location", m.machine.Location().String()).Msg("periodic refresh")
			m.machine.Reload()
			m.afterNavigation()
		}
		return m, refreshTick(m.refresh)

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil

	case openResultMsg:
		if msg.err != nil {
			return m, m.setError(msg.err)
		}
		return m, m.setStatus("Opened " + filepath.Base(msg.path))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// applyWorkerMessage hands msg to the machine and announces download results.
func (m *Model) applyWorkerMessage(msg transfer.Message) tea.Cmd {
	isDownload := m.hasTask(msg.Sequence())
	if !m.machine.OnMessage(msg) {
		return nil
	}
	m.afterNavigation()

	if !isDownload {
		return nil
	}
	switch msg := msg.(type) {
	case transfer.Success:
		return m.setStatus("Saved " + msg.Path)
	case transfer.Failure:
		return m.setError(fmt.Errorf("download failed: %w", msg.Err))
	}
	return nil
}

func (m *Model) hasTask(seq uint64) bool {
	for _, t := range m.machine.Downloads() {
		if t.Seq == seq {
			return true
		}
	}
	return false
}

// afterNavigation resets the cursor on a new location and points the
// directory watcher at it.
func (m *Model) afterNavigation() {
	loc := m.machine.Location()
	if loc != m.lastLoc {
		m.cursor = 0
		m.lastLoc = loc
	}
	m.clampCursor()
	m.followLocation()
}

func (m *Model) followLocation() {
	if m.watcher == nil {
		return
	}
	dir := ""
	if loc := m.machine.Location(); loc.Kind == state.LocalDirectory {
		dir = filepath.Clean(loc.Path)
	}
	if dir == m.watching {
		return
	}
	if err := m.watcher.Follow(dir); err != nil {
		m.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
	}
	m.watching = dir
}

func (m *Model) itemCount() int {
	st := m.machine.Snapshot().State
	if st.Kind != state.Loaded {
		return 0
	}
	if st.Feed != nil {
		return len(st.Feed.Entries)
	}
	return len(st.Files)
}

func (m *Model) clampCursor() {
	n := m.itemCount()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	tasks := len(m.machine.Downloads())
	if m.taskCursor >= tasks {
		m.taskCursor = tasks - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
}

// selectedEntry returns the catalog entry under the cursor.
func (m *Model) selectedEntry() (feed.Entry, bool) {
	st := m.machine.Snapshot().State
	if !st.HasFeed() || m.cursor >= len(st.Feed.Entries) {
		return feed.Entry{}, false
	}
	return st.Feed.Entries[m.cursor], true
}

// selectedFile returns the local entry under the cursor, after filtering.
func (m *Model) selectedFile() (localfs.FileEntry, bool) {
	snap := m.machine.Snapshot()
	if snap.Location.Kind != state.LocalDirectory || snap.State.Kind != state.Loaded {
		return localfs.FileEntry{}, false
	}
	if m.cursor >= len(snap.State.Files) {
		return localfs.FileEntry{}, false
	}
	return snap.State.Files[m.cursor], true
}

func (m *Model) selectedTask() (transfer.DownloadTask, bool) {
	tasks := m.machine.Downloads()
	if m.taskCursor < 0 || m.taskCursor >= len(tasks) {
		return transfer.DownloadTask{}, false
	}
	return tasks[m.taskCursor], true
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch, modeRename, modeFilter, modeAddConnection:
		return m.handleInput(msg)
	case modeFormats:
		return m.handleFormats(msg)
	case modePassword:
		return m.handlePassword(msg)
	case modeConfirmDelete:
		return m.handleConfirm(msg)
	case modeDetails:
		switch msg.String() {
		case "esc", "i", "enter", "backspace", "q":
			return m, m.toBrowse()
		}
		return m, nil
	}
	return m.handleBrowseKey(msg)
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	loc := m.machine.Location()
	local := loc.Kind == state.LocalDirectory

	switch {
	case key.Matches(msg, keys.Quit):
		m.machine.CancelAll()
		if m.prompter != nil {
			m.prompter.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < m.itemCount()-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Select):
		return m, m.selectCurrent()

	case key.Matches(msg, keys.Back):
		if !m.machine.GoBack() {
			return m, m.setStatus("Already at the top")
		}
		m.afterNavigation()

	case key.Matches(msg, keys.Search):
		st := m.machine.State()
		if local || !st.HasFeed() || !st.Feed.CanSearch() {
			return m, m.setError(state.ErrSearchUnavailable)
		}
		return m, m.startInput(modeSearch, "Search: ", "")

	case key.Matches(msg, keys.NextPage):
		return m, m.followPage(feed.PageNext)

	case key.Matches(msg, keys.PrevPage):
		return m, m.followPage(feed.PagePrevious)

	case key.Matches(msg, keys.ParentPage):
		return m, m.followPage(feed.PageUp)

	case key.Matches(msg, keys.StartPage):
		return m, m.followPage(feed.PageStart)

	case key.Matches(msg, keys.Reload):
		m.machine.Reload()
		m.afterNavigation()

	case key.Matches(msg, keys.Local):
		m.machine.OpenLocal()
		m.afterNavigation()

	case key.Matches(msg, keys.NextConn):
		if err := m.machine.NextConnection(); err != nil {
			return m, m.setError(err)
		}
		m.afterNavigation()

	case key.Matches(msg, keys.AddConn):
		m.newConn = config.Connection{}
		m.connStep = 0
		return m, m.startInput(modeAddConnection, connectionFields[0].prompt, "")

	case key.Matches(msg, keys.Rename):
		f, ok := m.selectedFile()
		if !ok {
			return m, m.setError(state.ErrNotLocal)
		}
		m.pendingFile = f
		return m, m.startInput(modeRename, "Rename to: ", f.Name)

	case key.Matches(msg, keys.Delete):
		f, ok := m.selectedFile()
		if !ok {
			return m, m.setError(state.ErrNotLocal)
		}
		m.pendingFile = f
		m.mode = modeConfirmDelete

	case key.Matches(msg, keys.Filter):
		if !local {
			return m, m.setError(state.ErrNotLocal)
		}
		return m, m.startInput(modeFilter, "Filter: ", m.machine.Filter())

	case key.Matches(msg, keys.Open):
		return m, m.openSelected(local)

	case key.Matches(msg, keys.Details):
		if _, ok := m.selectedEntry(); ok {
			m.mode = modeDetails
		}

	case key.Matches(msg, keys.NextTask):
		if m.taskCursor < len(m.machine.Downloads())-1 {
			m.taskCursor++
		}

	case key.Matches(msg, keys.PrevTask):
		if m.taskCursor > 0 {
			m.taskCursor--
		}

	case key.Matches(msg, keys.Cancel):
		t, ok := m.selectedTask()
		if !ok {
			return m, m.setError(errors.New("no download selected"))
		}
		if m.machine.CancelDownload(t.Seq) {
			return m, m.setStatus("Cancelled " + taskName(t))
		}
		if m.machine.DismissDownload(t.Seq) {
			m.clampCursor()
			return m, m.setStatus("Dismissed " + taskName(t))
		}
		return m, m.setError(errors.New("no download selected"))

	case key.Matches(msg, keys.ClearTasks):
		n := m.machine.DismissFinished()
		m.clampCursor()
		return m, m.setStatus(fmt.Sprintf("Cleared %d finished download(s)", n))

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) selectCurrent() tea.Cmd {
	if f, ok := m.selectedFile(); ok {
		path, err := m.machine.SelectFile(f)
		if err != nil {
			return m.setError(err)
		}
		m.afterNavigation()
		if path != "" {
			return openFile(m.open, path)
		}
		return nil
	}

	entry, ok := m.selectedEntry()
	if !ok {
		return nil
	}
	if !entry.IsNavigation() {
		if links := entry.Downloads(); len(links) > 1 {
			m.openFormats(entry, links)
			return nil
		}
	}
	seq, err := m.machine.SelectEntry(entry)
	if err != nil {
		return m.setError(err)
	}
	if seq != 0 {
		return m.setStatus("Downloading " + entry.Title)
	}
	m.afterNavigation()
	return nil
}

// openFormats offers every downloadable link of entry, starting at the one
// a plain select would have taken.
func (m *Model) openFormats(entry feed.Entry, links []feed.AcquisitionLink) {
	m.formatEntry = entry
	m.formats = links
	m.formatCursor = 0
	if preferred, ok := entry.PreferredDownload(); ok {
		for i, l := range links {
			if l.Href == preferred.Href {
				m.formatCursor = i
				break
			}
		}
	}
	m.mode = modeFormats
}

func (m *Model) handleFormats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.formatCursor > 0 {
			m.formatCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.formatCursor < len(m.formats)-1 {
			m.formatCursor++
		}
	case key.Matches(msg, keys.Select):
		entry, link := m.formatEntry, m.formats[m.formatCursor]
		cmd := m.toBrowse()
		if _, err := m.machine.Download(entry, link); err != nil {
			return m, tea.Batch(cmd, m.setError(err))
		}
		return m, tea.Batch(cmd, m.setStatus("Downloading "+entry.Title+" as "+formatLabel(link)))
	case msg.Type == tea.KeyEsc, key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		return m, m.toBrowse()
	}
	return m, nil
}

// advanceConnectionForm stores value in the current field, then asks for
// the next one or adds the finished connection and switches to it.
func (m *Model) advanceConnectionForm(value string) tea.Cmd {
	connectionFields[m.connStep].set(&m.newConn, strings.TrimSpace(value))
	m.connStep++
	if m.connStep < len(connectionFields) {
		return m.startInput(modeAddConnection, connectionFields[m.connStep].prompt, "")
	}

	conn := m.newConn
	cmd := m.toBrowse()
	if err := m.machine.AddConnection(conn); err != nil {
		return tea.Batch(cmd, m.setError(err))
	}
	if err := m.machine.SwitchConnection(conn.Name); err != nil {
		return tea.Batch(cmd, m.setError(err))
	}
	m.afterNavigation()
	if m.save != nil {
		if err := m.save(conn); err != nil {
			return tea.Batch(cmd, m.setError(fmt.Errorf("%s added for this session only: %w", conn.Name, err)))
		}
	}
	return tea.Batch(cmd, m.setStatus("Added connection "+conn.Name))
}

func (m *Model) followPage(rel feed.PageRel) tea.Cmd {
	if err := m.machine.OpenLink(rel); err != nil {
		return m.setError(err)
	}
	m.afterNavigation()
	return nil
}

func (m *Model) openSelected(local bool) tea.Cmd {
	if local {
		f, ok := m.selectedFile()
		if !ok || f.IsDir {
			return m.setError(errors.New("select a file to open"))
		}
		return openFile(m.open, f.Path)
	}
	t, ok := m.selectedTask()
	if !ok || t.Status != transfer.StatusCompleted {
		return m.setError(errors.New("select a completed download to open"))
	}
	return openFile(m.open, t.Path)
}

func (m *Model) startInput(md mode, prompt, value string) tea.Cmd {
	m.mode = md
	m.input.Prompt = prompt
	m.input.EchoMode = textinput.EchoNormal
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == modeFilter {
			_ = m.machine.FilterLocal("")
			m.clampCursor()
		}
		return m, m.toBrowse()

	case tea.KeyEnter:
		value := m.input.Value()
		if m.mode == modeAddConnection {
			return m, m.advanceConnectionForm(value)
		}
		md := m.mode
		cmd := m.toBrowse()
		switch md {
		case modeSearch:
			if err := m.machine.Search(value); err != nil {
				return m, tea.Batch(cmd, m.setError(err))
			}
		case modeRename:
			newPath, err := m.machine.Rename(m.pendingFile, value)
			m.afterNavigation()
			if err != nil {
				return m, tea.Batch(cmd, m.setError(err))
			}
			return m, tea.Batch(cmd, m.setStatus("Renamed to "+filepath.Base(newPath)))
		case modeFilter:
			_ = m.machine.FilterLocal(value)
			m.clampCursor()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeFilter {
		_ = m.machine.FilterLocal(m.input.Value())
		m.cursor = 0
	}
	return m, cmd
}

func (m *Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		cmd := m.toBrowse()
		err := m.machine.Delete(m.pendingFile)
		m.afterNavigation()
		if err != nil {
			return m, tea.Batch(cmd, m.setError(err))
		}
		return m, tea.Batch(cmd, m.setStatus("Deleted "+m.pendingFile.Name))
	case "n", "N", "esc", "q":
		return m, m.toBrowse()
	}
	return m, nil
}

func (m *Model) handlePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.answer(PasswordReply{Secret: m.input.Value()})
		return m, m.toBrowse()
	case tea.KeyEsc, tea.KeyCtrlC:
		m.answer(PasswordReply{Err: credential.ErrCancelled})
		return m, m.toBrowse()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) answer(reply PasswordReply) {
	if m.prompt == nil {
		return
	}
	m.prompt.Reply <- reply
	m.prompt = nil
	m.input.SetValue("")
}

// nextPrompt shows the oldest request whose worker is still waiting.
func (m *Model) nextPrompt() tea.Cmd {
	for len(m.prompts) > 0 {
		req := m.prompts[0]
		m.prompts = m.prompts[1:]
		if req.Abandoned() {
			continue
		}
		m.prompt = &req
		m.mode = modePassword
		m.input.Prompt = fmt.Sprintf("Password for %s at %s: ", req.Connection.Username, req.Connection.Name)
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
		m.input.SetValue("")
		return m.input.Focus()
	}
	return nil
}

// toBrowse leaves any input mode, showing a queued password prompt first.
func (m *Model) toBrowse() tea.Cmd {
	m.input.Blur()
	m.input.SetValue("")
	m.formats = nil
	m.mode = modeBrowse
	return m.nextPrompt()
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusID++
	m.status = text
	m.statusErr = false
	return clearStatusAfter(m.statusID, constants.StatusMessageTTL)
}

func (m *Model) setError(err error) tea.Cmd {
	m.statusID++
	m.status = err.Error()
	m.statusErr = true
	m.logger.Debug().Err(err).Msg("status error")
	return clearStatusAfter(m.statusID, constants.StatusMessageTTL)
}

// formatLabel names a download choice by title and media type.
func formatLabel(a feed.AcquisitionLink) string {
	label := a.Type
	if label == "" {
		label = "unknown format"
	}
	if a.Title != "" {
		label = a.Title + " (" + label + ")"
	}
	if a.Kind == feed.AcquisitionSample {
		label += " [sample]"
	}
	return label
}

func taskName(t transfer.DownloadTask) string {
	if t.Title != "" {
		return t.Title
	}
	if t.Path != "" {
		return filepath.Base(t.Path)
	}
	return t.URL
}
