package state

import (
	"strings"

	"github.com/ncopds/ncopds/internal/localfs"
)

// localView returns the listed directory, or ErrNotLocal.
func (m *Machine) localView() (Location, error) {
	loc := m.Location()
	if loc.Kind != LocalDirectory {
		return loc, ErrNotLocal
	}
	return loc, nil
}

// SelectFile opens a directory entry and returns "" for it; for a file it
// returns the path for the caller's file opener.
func (m *Machine) SelectFile(entry localfs.FileEntry) (string, error) {
	if _, err := m.localView(); err != nil {
		return "", err
	}
	if entry.IsDir {
		m.Open(Local(entry.Path))
		return "", nil
	}
	return entry.Path, nil
}

// Rename renames a listed file and re-lists the directory.
func (m *Machine) Rename(entry localfs.FileEntry, newName string) (string, error) {
	if _, err := m.localView(); err != nil {
		return "", err
	}
	newPath, err := localfs.Rename(entry.Path, newName)
	m.relist()
	return newPath, err
}

// Delete removes a listed file or empty directory and re-lists. There is no
// trash: deletion is immediate.
func (m *Machine) Delete(entry localfs.FileEntry) error {
	if _, err := m.localView(); err != nil {
		return err
	}
	err := localfs.Delete(entry.Path)
	m.relist()
	return err
}

// relist refreshes the local listing in place, keeping the filter.
func (m *Machine) relist() {
	if m.Location().Kind == LocalDirectory {
		m.load(m.Location())
	}
}

// FilterLocal narrows the displayed listing to names containing text,
// ignoring case. An empty text shows everything.
func (m *Machine) FilterLocal(text string) error {
	if _, err := m.localView(); err != nil {
		return err
	}
	m.filter = strings.TrimSpace(text)
	return nil
}

// Filter returns the active local filter.
func (m *Machine) Filter() string {
	return m.filter
}
