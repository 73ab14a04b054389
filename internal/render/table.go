package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Jashwanth-1/AI-MCP/internal/domain"
	"github.com/Jashwanth-1/AI-MCP/internal/logging"
)

const descriptionWidth = 60

var (
	tableBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("62"))

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205")).
				Padding(0, 1)

	toolNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Padding(0, 1)

	toolDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// ToolTable renders the catalog as a bordered two-column table.
func ToolTable(tools []domain.ToolDescriptor) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers("TOOL", "DESCRIPTION").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0:
				return toolNameStyle
			default:
				return toolDescStyle
			}
		})

	for _, tool := range tools {
		t.Row(tool.Name, logging.Truncate(firstLine(tool.Description), descriptionWidth))
	}
	return t.String()
}
