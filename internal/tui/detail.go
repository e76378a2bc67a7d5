package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/types"
)

// DetailModel shows information about the selected item.
type DetailModel struct {
	Width      int
	Height     int
	Scroll     int // scroll offset
	ContentLen int // total lines in content
}

// ScrollUp adjusts the scroll offset upward.
func (m *DetailModel) ScrollUp() {
	if m.Scroll > 0 {
		m.Scroll--
	}
}

// ScrollDown adjusts the scroll offset downward.
func (m *DetailModel) ScrollDown() {
	if m.Scroll < m.ContentLen-m.Height {
		m.Scroll++
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}
}

// ViewRow renders every field of row. updated is when the table was last
// replaced; zero hides the line.
func (m DetailModel) ViewRow(row types.Row, changed bool, updated time.Time) string {
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle := lipgloss.NewStyle()
	upStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	signed := func(f float64, format string) string {
		s := fmt.Sprintf(format, f)
		switch {
		case f > 0:
			return upStyle.Render(s)
		case f < 0:
			return downStyle.Render(s)
		}
		return valueStyle.Render(s)
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("Ticker") + "\n")
	title := "$" + row.Ticker
	if changed {
		title += dimStyle.Render("  (updated)")
	}
	b.WriteString(valueStyle.Bold(true).Render(title) + "\n\n")

	if row.Date != "" {
		b.WriteString(labelStyle.Render("Date") + "\n")
		b.WriteString(valueStyle.Render(row.Date) + "\n\n")
	}

	b.WriteString(labelStyle.Render("Interest score") + "\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.2f", row.InterestScore)) + "\n\n")

	b.WriteString(labelStyle.Render("Mentions") + "\n")
	b.WriteString(valueStyle.Render(humanize.Comma(int64(row.Mentions))) + "\n\n")

	b.WriteString(labelStyle.Render("Sentiment") + "\n")
	b.WriteString(signed(row.Sentiment, "%+.2f") + "\n\n")

	b.WriteString(labelStyle.Render("Change vs average") + "\n")
	b.WriteString(signed(row.ChangeVsAvg*100, "%+.0f%%") + "\n")

	if row.ZScore != nil {
		b.WriteString("\n" + labelStyle.Render("Z-score") + "\n")
		b.WriteString(signed(*row.ZScore, "%+.2f") + "\n")
	}
	if row.Pos != nil || row.Neg != nil || row.Neu != nil {
		b.WriteString("\n" + labelStyle.Render("Pos / Neg / Neu") + "\n")
		b.WriteString(fmt.Sprintf("%s / %s / %s\n", optCount(row.Pos), optCount(row.Neg), optCount(row.Neu)))
	}

	if !updated.IsZero() {
		b.WriteString("\n" + dimStyle.Render("Updated "+humanize.Time(updated)) + "\n")
	}
	return b.String()
}

// ViewScrolled applies scroll offset and height truncation to the content string.
func (m *DetailModel) ViewScrolled(content string) string {
	if content == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	m.ContentLen = len(lines)

	// Clamp scroll
	maxScroll := m.ContentLen - m.Height
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.Scroll > maxScroll {
		m.Scroll = maxScroll
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}

	end := m.Scroll + m.Height
	if end > len(lines) {
		end = len(lines)
	}

	if m.Scroll >= len(lines) {
		return ""
	}

	return strings.Join(lines[m.Scroll:end], "\n")
}

func optCount(n *int) string {
	if n == nil {
		return "-"
	}
	return humanize.Comma(int64(*n))
}
