package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	Back       key.Binding
	Search     key.Binding
	NextPage   key.Binding
	PrevPage   key.Binding
	ParentPage key.Binding
	StartPage  key.Binding
	Reload     key.Binding
	Local      key.Binding
	NextConn   key.Binding
	AddConn    key.Binding
	Rename     key.Binding
	Delete     key.Binding
	Filter     key.Binding
	Open       key.Binding
	Details    key.Binding
	NextTask   key.Binding
	PrevTask   key.Binding
	Cancel     key.Binding
	ClearTasks key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/download")),
	Back:       key.NewBinding(key.WithKeys("backspace", "h", "left"), key.WithHelp("⌫/h", "back")),
	Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	NextPage:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next page")),
	PrevPage:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev page")),
	ParentPage: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "up a level")),
	StartPage:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "catalog start")),
	Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Local:      key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "downloads dir")),
	NextConn:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next catalog")),
	AddConn:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add catalog")),
	Rename:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rename")),
	Delete:     key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete")),
	Filter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Open:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open file")),
	Details:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "details")),
	NextTask:   key.NewBinding(key.WithKeys("J"), key.WithHelp("J/K", "select download")),
	PrevTask:   key.NewBinding(key.WithKeys("K")),
	Cancel:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel/dismiss")),
	ClearTasks: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear finished")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Back, k.Search, k.Local, k.NextConn, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Details},
		{k.Search, k.NextPage, k.PrevPage, k.ParentPage, k.StartPage},
		{k.Reload, k.NextConn, k.AddConn, k.Local, k.Open},
		{k.Rename, k.Delete, k.Filter},
		{k.NextTask, k.Cancel, k.ClearTasks, k.Help, k.Quit},
	}
}
