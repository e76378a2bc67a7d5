package tui

import (
	"database/sql"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/reconcile"
	"github.com/lotas/tradersecho/internal/snapshot"
	"github.com/lotas/tradersecho/internal/storage"
)

type snapshotsLoadedMsg struct {
	mode      string
	snapshots []storage.SnapshotSummary
	err       error
}

type snapshotDiffMsg struct {
	rev  int
	diff *snapshot.DiffResult
	err  error
}

type snapshotDeletedMsg struct {
	rev int
	err error
}

// SnapshotsView lists saved tables for the mounted mode and shows how each
// differs from the current table.
type SnapshotsView struct {
	db        *sql.DB
	mode      string
	current   reconcile.Table
	snapshots []storage.SnapshotSummary
	diff      *snapshot.DiffResult
	cursor    int
	offset    int
	detail    DetailModel
	width     int
	height    int
	loading   bool
	err       error

	focusDetail bool
}

func NewSnapshotsView(db *sql.DB) SnapshotsView {
	return SnapshotsView{db: db}
}

// Open reloads the list for mode, diffing against current.
func (v *SnapshotsView) Open(mode string, current reconcile.Table) tea.Cmd {
	if v.db == nil {
		v.err = fmt.Errorf("snapshots unavailable: no local database")
		return nil
	}
	v.mode = mode
	v.current = current
	v.cursor = 0
	v.offset = 0
	v.diff = nil
	v.loading = true
	v.focusDetail = false
	return v.loadSnapshots()
}

func (v *SnapshotsView) loadSnapshots() tea.Cmd {
	db, mode := v.db, v.mode
	return func() tea.Msg {
		snaps, err := storage.ListSnapshots(db, mode)
		return snapshotsLoadedMsg{mode: mode, snapshots: snaps, err: err}
	}
}

func (v *SnapshotsView) loadDiff(rev int) tea.Cmd {
	db, mode, current := v.db, v.mode, v.current
	return func() tea.Msg {
		d, err := snapshot.DiffAgainstCurrent(db, mode, rev, current)
		return snapshotDiffMsg{rev: rev, diff: d, err: err}
	}
}

func (v *SnapshotsView) deleteSelected() tea.Cmd {
	if v.cursor >= len(v.snapshots) {
		return nil
	}
	db, mode, rev := v.db, v.mode, v.snapshots[v.cursor].Rev
	return func() tea.Msg {
		return snapshotDeletedMsg{rev: rev, err: storage.DeleteSnapshot(db, mode, rev)}
	}
}

func (v *SnapshotsView) SetSize(w, h int) {
	v.width = w
	v.height = h
	v.detail.Width = w - (w * TableWidthPct / 100) - 3
	v.detail.Height = h
}

// Count is the number of listed snapshots.
func (v SnapshotsView) Count() int { return len(v.snapshots) }

func (v SnapshotsView) Update(msg tea.Msg) (SnapshotsView, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotsLoadedMsg:
		if msg.mode != v.mode {
			return v, nil
		}
		v.loading = false
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.snapshots = msg.snapshots
		v.err = nil
		if v.cursor >= len(v.snapshots) {
			v.cursor = 0
			v.offset = 0
		}
		if len(v.snapshots) > 0 {
			return v, v.loadDiff(v.snapshots[v.cursor].Rev)
		}
		v.diff = nil
		return v, nil

	case snapshotDiffMsg:
		if v.cursor >= len(v.snapshots) || v.snapshots[v.cursor].Rev != msg.rev {
			return v, nil
		}
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.diff = msg.diff
		v.detail.Scroll = 0
		return v, nil

	case snapshotDeletedMsg:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.loading = true
		return v, v.loadSnapshots()

	case tea.KeyMsg:
		if v.focusDetail {
			switch msg.String() {
			case "esc":
				v.focusDetail = false
				v.detail.Scroll = 0
			case "j", "down":
				v.detail.ScrollDown()
			case "k", "up":
				v.detail.ScrollUp()
			}
			return v, nil
		}

		switch msg.String() {
		case "j", "down":
			if v.cursor < len(v.snapshots)-1 {
				v.cursor++
				v.adjustOffset()
				return v, v.loadDiff(v.snapshots[v.cursor].Rev)
			}
		case "k", "up":
			if v.cursor > 0 {
				v.cursor--
				v.adjustOffset()
				return v, v.loadDiff(v.snapshots[v.cursor].Rev)
			}
		case "enter":
			v.focusDetail = true
		case "d":
			return v, v.deleteSelected()
		}
	}
	return v, nil
}

func (v *SnapshotsView) adjustOffset() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	visible := v.height - 2
	if visible < 1 {
		visible = 1
	}
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

func (v SnapshotsView) ViewList() string {
	if v.loading {
		return "Loading snapshots..."
	}
	if v.err != nil {
		return fmt.Sprintf("Error: %v", v.err)
	}
	if len(v.snapshots) == 0 {
		return fmt.Sprintf("No %s snapshots yet. Press S on the dashboard to save one.", v.mode)
	}

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	listWidth := v.width * TableWidthPct / 100

	var b strings.Builder
	end := v.offset + v.height
	if end > len(v.snapshots) {
		end = len(v.snapshots)
	}

	for i := v.offset; i < end; i++ {
		s := v.snapshots[i]
		ts := s.CreatedAt.Local().Format("2006-01-02 15:04")
		label := ""
		if s.Label != "" {
			label = " " + s.Label
		}
		line := fmt.Sprintf("  #%-3d %s  (%s rows)%s", s.Rev, ts, humanize.Comma(int64(s.RowCount)), label)

		if i == v.cursor {
			for lipgloss.Width(line) < listWidth {
				line += " "
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (v SnapshotsView) ViewDetail() string {
	if v.diff == nil {
		return ""
	}
	return v.detail.ViewScrolled(snapshot.FormatDiff(v.diff))
}

func (v SnapshotsView) FocusDetail() bool { return v.focusDetail }
