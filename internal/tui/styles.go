package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7D56F4")
	muted  = lipgloss.Color("241")
	danger = lipgloss.Color("#E06C75")
	good   = lipgloss.Color("#98C379")

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(muted)
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("230")).Background(accent)
	locationStyle  = lipgloss.NewStyle().Foreground(muted)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle       = lipgloss.NewStyle().Foreground(muted)
	errorStyle     = lipgloss.NewStyle().Foreground(danger)
	okStyle        = lipgloss.NewStyle().Foreground(good)
	promptStyle    = lipgloss.NewStyle().Bold(true)
	paneStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(muted)
	detailKey      = lipgloss.NewStyle().Bold(true).Width(12)
)
