package state

import (
	"github.com/ncopds/ncopds/internal/feed"
	"github.com/ncopds/ncopds/internal/transfer"
)

// Download starts fetching link into the download directory without
// changing the location. Buy and borrow links are refused.
func (m *Machine) Download(entry feed.Entry, link feed.AcquisitionLink) (uint64, error) {
	if !link.Kind.Fetchable() {
		return 0, ErrNotSelectable
	}
	conn, _ := m.connection(m.Location().Connection)
	seq := m.allocSeq()
	m.downloads.Track(seq, link.Href, m.downloadDir, entry.Title)
	m.pool.Submit(transfer.Request{
		Seq:        seq,
		Kind:       transfer.Download,
		Connection: conn,
		URL:        link.Href,
		DestDir:    m.downloadDir,
		MediaType:  link.Type,
		Title:      entry.Title,
	})
	m.logger.Info().Uint64("seq", seq).Str("url", link.Href).Msg("download queued")
	return seq, nil
}

// CancelDownload marks a running download Failed(Cancelled) and asks the
// pool to stop it. Later messages for seq are ignored.
func (m *Machine) CancelDownload(seq uint64) bool {
	if !m.downloads.Cancel(seq) {
		return false
	}
	m.pool.Cancel(seq)
	return true
}

// DismissDownload removes a finished download from the list.
func (m *Machine) DismissDownload(seq uint64) bool {
	return m.downloads.Dismiss(seq)
}

// DismissFinished removes every finished download and returns the count.
func (m *Machine) DismissFinished() int {
	return m.downloads.ClearFinished()
}

// Downloads returns the download tasks in creation order.
func (m *Machine) Downloads() []transfer.DownloadTask {
	return m.downloads.Tasks()
}

// DownloadStats counts the download tasks per status.
func (m *Machine) DownloadStats() transfer.QueueStats {
	return m.downloads.Stats()
}

// CancelAll stops every running download and any pending navigation,
// typically before the program exits.
func (m *Machine) CancelAll() {
	for _, seq := range m.downloads.Running() {
		m.CancelDownload(seq)
	}
	if m.pending != nil {
		m.pool.Cancel(m.pending.seq)
		m.pending = nil
	}
}
