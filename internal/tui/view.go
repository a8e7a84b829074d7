package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/localfs"
	"github.com/ncopds/ncopds/internal/state"
	"github.com/ncopds/ncopds/internal/transfer"
)

// maxTaskRows bounds the download pane.
const maxTaskRows = 5

// View renders one frame from the machine's snapshot.
func (m *Model) View() string {
	snap := m.machine.Snapshot()

	header := m.renderTabs(snap) + "\n" + locationStyle.Render(m.renderLocation(snap))
	tasks := m.renderTasks(snap.Downloads)
	footer := m.renderFooter()

	used := lipgloss.Height(header) + lipgloss.Height(footer)
	if tasks != "" {
		used += lipgloss.Height(tasks)
	}
	bodyHeight := m.height - used - 1
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var body string
	switch m.mode {
	case modeDetails:
		if entry, ok := m.selectedEntry(); ok {
			body = renderDetails(entry, m.width)
		}
	case modeFormats:
		body = m.renderFormats()
	default:
		body = m.renderBody(snap, bodyHeight)
	}

	parts := []string{header, body}
	if tasks != "" {
		parts = append(parts, tasks)
	}
	parts = append(parts, footer)
	return strings.Join(parts, "\n")
}

func (m *Model) renderTabs(snap state.Snapshot) string {
	var tabs []string
	tabs = append(tabs, titleStyle.Render("ncopds"))
	for _, c := range snap.Connections {
		style := tabStyle
		if c.Name == snap.ActiveSession {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(c.Name))
	}
	style := tabStyle
	if snap.ActiveSession == state.LocalSession {
		style = activeTabStyle
	}
	tabs = append(tabs, style.Render("Downloads"))
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderLocation(snap state.Snapshot) string {
	var b strings.Builder
	switch {
	case snap.State.HasFeed() && snap.State.Feed.Title != "":
		b.WriteString(snap.State.Feed.Title)
		if snap.Location.Kind == state.SearchResult {
			fmt.Fprintf(&b, " (search %q)", snap.Location.Query)
		}
	default:
		b.WriteString(snap.Location.String())
	}
	if snap.Depth > 1 {
		fmt.Fprintf(&b, "  [depth %d]", snap.Depth)
	}
	if snap.Filter != "" {
		fmt.Fprintf(&b, "  [filter %q]", snap.Filter)
	}
	return b.String()
}

func (m *Model) renderBody(snap state.Snapshot, height int) string {
	st := snap.State
	switch st.Kind {
	case state.Idle:
		return ""
	case state.Loading:
		return m.spinner.View() + " Loading " + snap.Location.String()
	case state.Failed:
		hint := "r to retry"
		if snap.CanGoBack() {
			hint += ", backspace to go back"
		}
		if st.ErrKind == transfer.KindAuthRequired {
			hint += ", check the username or stored password"
		}
		return errorStyle.Render("Error: "+st.Message) + "\n" + dimStyle.Render(hint)
	}

	var rows []string
	if st.Feed != nil {
		for i, e := range st.Feed.Entries {
			rows = append(rows, m.renderEntry(e, i == m.cursor))
		}
		if len(rows) == 0 {
			rows = append(rows, dimStyle.Render("(empty catalog)"))
		}
		if pages := pageHints(st.Feed); pages != "" {
			rows = append(rows, dimStyle.Render(pages))
		}
	} else {
		for i, f := range st.Files {
			rows = append(rows, m.renderFile(f, i == m.cursor))
		}
		if len(rows) == 0 {
			rows = append(rows, dimStyle.Render("(no files)"))
		}
	}
	return strings.Join(window(rows, m.cursor, height), "\n")
}

// window returns at most height rows keeping the cursor visible.
func window(rows []string, cursor, height int) []string {
	if len(rows) <= height {
		return rows
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > len(rows) {
		start = len(rows) - height
	}
	return rows[start : start+height]
}

func (m *Model) renderEntry(e feed.Entry, selected bool) string {
	marker := "  "
	if selected {
		marker = "> "
	}
	icon := "·"
	switch {
	case e.IsNavigation():
		icon = "▸"
	case e.Downloadable():
		icon = "↓"
	}
	line := fmt.Sprintf("%s%s %s", marker, icon, e.Title)
	if authors := e.AuthorLine(); authors != "" {
		line += dimStyle.Render(" · " + authors)
	}
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func (m *Model) renderFile(f localfs.FileEntry, selected bool) string {
	marker := "  "
	if selected {
		marker = "> "
	}
	name := f.Name
	meta := humanize.Time(f.ModTime)
	if f.IsDir {
		name += "/"
	} else {
		meta = humanize.IBytes(uint64(f.Size)) + "  " + meta
	}
	line := fmt.Sprintf("%s%-40s %s", marker, name, dimStyle.Render(meta))
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

var pageHintLabels = map[feed.PageRel]string{
	feed.PageStart:    "s: start",
	feed.PageUp:       "u: up",
	feed.PagePrevious: "p: previous page",
	feed.PageNext:     "n: next page",
}

func pageHints(f *feed.Feed) string {
	var hints []string
	for _, rel := range feed.PageRels {
		if _, ok := f.PageLink(rel); ok {
			hints = append(hints, pageHintLabels[rel])
		}
	}
	if f.CanSearch() {
		hints = append(hints, "/: search")
	}
	return strings.Join(hints, "  ")
}

func (m *Model) renderTasks(tasks []transfer.DownloadTask) string {
	if len(tasks) == 0 {
		return ""
	}
	start := 0
	if len(tasks) > maxTaskRows {
		start = m.taskCursor - maxTaskRows + 1
		if start < 0 {
			start = 0
		}
	}
	end := start + maxTaskRows
	if end > len(tasks) {
		end = len(tasks)
	}

	stats := m.machine.DownloadStats()
	header := fmt.Sprintf("Downloads: %d active, %d done", stats.Running(), stats.Completed)
	if stats.Failed > 0 {
		header += fmt.Sprintf(", %d failed", stats.Failed)
	}
	rows := []string{dimStyle.Render(header)}
	for i := start; i < end; i++ {
		rows = append(rows, m.renderTask(tasks[i], i == m.taskCursor))
	}
	if hidden := len(tasks) - (end - start); hidden > 0 {
		rows = append(rows, dimStyle.Render(fmt.Sprintf("  … %d more", hidden)))
	}
	return paneStyle.Width(m.width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderTask(t transfer.DownloadTask, selected bool) string {
	marker := "  "
	if selected {
		marker = "> "
	}
	name := truncate(taskName(t), 30)

	var detail string
	switch t.Status {
	case transfer.StatusQueued:
		detail = dimStyle.Render("queued")
	case transfer.StatusInProgress:
		if f := t.Fraction(); f >= 0 {
			detail = m.bar.ViewAs(f) + fmt.Sprintf(" %s / %s", humanize.IBytes(uint64(t.Received)), humanize.IBytes(uint64(t.Total)))
		} else {
			detail = humanize.IBytes(uint64(t.Received))
		}
		if t.Speed > 0 {
			detail += dimStyle.Render(fmt.Sprintf("  %s/s", humanize.IBytes(uint64(t.Speed))))
		}
	case transfer.StatusCompleted:
		detail = okStyle.Render("✓ " + t.Path)
	case transfer.StatusFailed:
		if t.Cancelled() {
			detail = dimStyle.Render("cancelled")
		} else {
			detail = errorStyle.Render("✗ " + t.Reason())
		}
	}
	return fmt.Sprintf("%s%-30s %s", marker, name, detail)
}

func (m *Model) renderFooter() string {
	var lines []string
	switch m.mode {
	case modeSearch, modeRename, modeFilter, modePassword, modeAddConnection:
		lines = append(lines, m.input.View())
	case modeConfirmDelete:
		lines = append(lines, promptStyle.Render(fmt.Sprintf("Delete %s? (y/n)", m.pendingFile.Name)))
	}
	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errorStyle
		}
		lines = append(lines, style.Render(m.status))
	}
	lines = append(lines, m.help.View(keys))
	return strings.Join(lines, "\n")
}

func renderDetails(e feed.Entry, width int) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailKey.Render(label) + value + "\n")
	}

	b.WriteString(titleStyle.Render(e.Title) + "\n\n")
	row("Authors", e.AuthorLine())
	row("Categories", strings.Join(e.Categories, ", "))
	if !e.Updated.IsZero() {
		row("Updated", e.Updated.Format("2006-01-02"))
	}
	if !e.Published.IsZero() {
		row("Published", e.Published.Format("2006-01-02"))
	}
	if cover, ok := e.Cover(); ok {
		row("Cover", cover)
	}
	for _, a := range e.Acquisitions {
		if a.Kind == feed.AcquisitionImage || a.Kind == feed.AcquisitionThumbnail {
			continue
		}
		label := a.Kind.String()
		value := a.Href
		if a.Type != "" {
			value += dimStyle.Render(" (" + a.Type + ")")
		}
		row(label, value)
	}

	text := e.Summary
	if e.Content != "" {
		text = e.Content
	}
	if text != "" {
		wrap := width - 2
		if wrap < 20 {
			wrap = 20
		}
		b.WriteString("\n" + lipgloss.NewStyle().Width(wrap).Render(text) + "\n")
	}
	b.WriteString(dimStyle.Render("\nesc to close"))
	return b.String()
}

func (m *Model) renderFormats() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Download "+m.formatEntry.Title) + "\n\n")
	for i, a := range m.formats {
		line := "  " + formatLabel(a)
		if i == m.formatCursor {
			line = selectedStyle.Render("> " + formatLabel(a))
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("\nenter to download, esc to cancel"))
	return b.String()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
