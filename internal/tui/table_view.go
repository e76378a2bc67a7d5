package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/types"
)

// TableView is the scrollable list of rows in the left pane.
type TableView struct {
	rows    []types.Row
	touched map[string]bool
	daily   bool

	Cursor int
	Offset int
	Width  int
	Height int
}

// SetRows replaces the rows, keeping the cursor on the same ticker when it
// is still present.
func (v *TableView) SetRows(rows []types.Row, touched map[string]bool) {
	var current string
	if r, ok := v.Selected(); ok {
		current = r.Ticker
	}
	v.rows = rows
	v.touched = touched
	v.daily = false
	for _, r := range rows {
		if r.Date != "" {
			v.daily = true
			break
		}
	}

	v.Cursor = 0
	for i, r := range rows {
		if r.Ticker == current {
			v.Cursor = i
			break
		}
	}
	v.adjustOffset()
}

// Selected returns the row under the cursor.
func (v TableView) Selected() (types.Row, bool) {
	if v.Cursor < 0 || v.Cursor >= len(v.rows) {
		return types.Row{}, false
	}
	return v.rows[v.Cursor], true
}

// Touched reports whether ticker changed in the last update.
func (v TableView) Touched(ticker string) bool { return v.touched[ticker] }

func (v *TableView) MoveUp() {
	if v.Cursor > 0 {
		v.Cursor--
		v.adjustOffset()
	}
}

func (v *TableView) MoveDown() {
	if v.Cursor < len(v.rows)-1 {
		v.Cursor++
		v.adjustOffset()
	}
}

func (v *TableView) visible() int {
	n := v.Height - 1 // header
	if n < 1 {
		n = 1
	}
	return n
}

func (v *TableView) adjustOffset() {
	if v.Cursor < v.Offset {
		v.Offset = v.Cursor
	}
	if v.Cursor >= v.Offset+v.visible() {
		v.Offset = v.Cursor - v.visible() + 1
	}
	if v.Offset < 0 {
		v.Offset = 0
	}
}

// View renders the header and the visible rows. empty is shown when there
// are no rows.
func (v TableView) View(empty string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	touchedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	var b strings.Builder
	if v.daily {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %-6s %-10s %8s %9s %9s %7s", "TICKER", "DATE", "INTEREST", "MENTIONS", "SENTIMENT", "Z")))
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %-6s %8s %9s %9s %7s", "TICKER", "INTEREST", "MENTIONS", "SENTIMENT", "VS AVG")))
	}
	if len(v.rows) == 0 {
		b.WriteString("\n\n  " + empty)
		return b.String()
	}

	end := v.Offset + v.visible()
	if end > len(v.rows) {
		end = len(v.rows)
	}
	for i := v.Offset; i < end; i++ {
		r := v.rows[i]
		marker := "  "
		if v.touched[r.Ticker] {
			marker = touchedStyle.Render("• ")
		}
		var line string
		if v.daily {
			z := ""
			if r.ZScore != nil {
				z = fmt.Sprintf("%+.2f", *r.ZScore)
			}
			line = fmt.Sprintf("%-6s %-10s %8.2f %9s %+9.2f %7s",
				r.Ticker, r.Date, r.InterestScore, humanize.Comma(int64(r.Mentions)), r.Sentiment, z)
		} else {
			line = fmt.Sprintf("%-6s %8.2f %9s %+9.2f %+6.0f%%",
				r.Ticker, r.InterestScore, humanize.Comma(int64(r.Mentions)), r.Sentiment, r.ChangeVsAvg*100)
		}
		if i == v.Cursor {
			for lipgloss.Width(line) < v.Width-2 {
				line += " "
			}
			line = cursorStyle.Render(line)
		}
		b.WriteString("\n" + marker + line)
	}
	return b.String()
}
