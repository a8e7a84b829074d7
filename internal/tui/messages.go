package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ncopds/ncopds/internal/transfer"
)

// workerMsg carries one transfer message into Update.
type workerMsg struct {
	msg transfer.Message
}

// poolClosedMsg means the message channel was closed.
type poolClosedMsg struct{}

// passwordMsg is a credential prompt from a worker.
type passwordMsg struct {
	req PasswordRequest
}

// dirChangedMsg reports a filesystem change in the watched directory.
type dirChangedMsg struct {
	dir string
}

type refreshTickMsg struct{}

type clearStatusMsg struct {
	id int
}

type openResultMsg struct {
	path string
	err  error
}

// waitForMessage blocks on the pool channel. It is re-issued after every
// message so the loop stays the single consumer.
func waitForMessage(ch <-chan transfer.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return poolClosedMsg{}
		}
		return workerMsg{msg: msg}
	}
}

func waitForPassword(ch <-chan PasswordRequest) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		req, ok := <-ch
		if !ok {
			return nil
		}
		return passwordMsg{req: req}
	}
}

func waitForDirChange(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		dir, ok := <-ch
		if !ok {
			return nil
		}
		return dirChangedMsg{dir: dir}
	}
}

func refreshTick(interval time.Duration) tea.Cmd {
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

func clearStatusAfter(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func openFile(open func(string) error, path string) tea.Cmd {
	return func() tea.Msg {
		return openResultMsg{path: path, err: open(path)}
	}
}
