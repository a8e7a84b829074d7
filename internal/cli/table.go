package cli

import (
	"github.com/charmbracelet/lipgloss"
	lipTable "github.com/charmbracelet/lipgloss/table"
)

// newTable returns a borderless table for command output. Columns listed in
// rightAligned are aligned right, the rest left.
func newTable(headers []string, rightAligned ...int) *lipTable.Table {
	cell := lipgloss.NewStyle().PaddingRight(2)
	right := make(map[int]bool, len(rightAligned))
	for _, col := range rightAligned {
		right[col] = true
	}
	return lipTable.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false).
		Wrap(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			if right[col] {
				return cell.Align(lipgloss.Right)
			}
			return cell
		}).
		Headers(headers...)
}
