package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tradersecho/internal/types"
)

type SortOption struct {
	Label string
	Key   types.SortKey
}

// FilterPicker chooses the sort order of the free list.
type FilterPicker struct {
	Options []SortOption
	Cursor  int
	Width   int
	Height  int
}

func NewFilterPicker(current types.SortKey) FilterPicker {
	options := []SortOption{
		{"Interest score", types.SortInterest},
		{"Mentions", types.SortMentions},
		{"Z-score", types.SortZScore},
		{"Positive", types.SortPos},
		{"Negative", types.SortNeg},
		{"Neutral", types.SortNeu},
		{"Ticker", types.SortTicker},
		{"Day", types.SortDay},
	}
	cursor := 0
	for i, opt := range options {
		if opt.Key == current {
			cursor = i
			break
		}
	}
	return FilterPicker{Options: options, Cursor: cursor}
}

func (m *FilterPicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *FilterPicker) MoveDown() {
	if m.Cursor < len(m.Options)-1 {
		m.Cursor++
	}
}

func (m FilterPicker) Selected() SortOption {
	return m.Options[m.Cursor]
}

func (m FilterPicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Sort by:") + "\n\n")

	for i, opt := range m.Options {
		label := opt.Label
		if i == m.Cursor {
			label = selectedStyle.Render(label)
		} else {
			label = normalStyle.Render("  " + label)
		}
		b.WriteString(label + "\n")
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter select · esc cancel"))

	return boxStyle.Render(b.String())
}
