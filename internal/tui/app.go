package tui

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/channel"
	"github.com/lotas/tradersecho/internal/dashboard"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/snapshot"
	"github.com/lotas/tradersecho/internal/types"
	"github.com/lotas/tradersecho/internal/view"
)

// --- Messages ---

type meTickMsg struct{}

type clipboardMsg struct{ err error }

type snapshotSavedMsg struct {
	rev     int
	created bool
	err     error
}

// Options configures the TUI.
type Options struct {
	DB         *sql.DB // nil disables snapshots
	MeInterval time.Duration
}

// --- Model ---

type Model struct {
	ctx  context.Context
	dash *dashboard.Dashboard
	opts Options

	// Last render model from the dashboard
	state    dashboard.Model
	startCmd tea.Cmd

	// UI state
	active    ViewType
	table     TableView
	detail    DetailModel
	snapshots SnapshotsView
	login     LoginForm
	spinner   spinner.Model
	status    string
	width     int
	height    int

	tickers          textinput.Model
	editingTickers   bool
	filterPicker     FilterPicker
	showFilterPicker bool
}

// NewModel starts d and returns the program model. Commands run with ctx;
// cancelling it abandons everything still in flight.
func NewModel(ctx context.Context, d *dashboard.Dashboard, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Prompt = "Tickers: "
	ti.Placeholder = "AAPL, TSLA"
	ti.CharLimit = 256

	m := Model{
		ctx:       ctx,
		dash:      d,
		opts:      opts,
		snapshots: NewSnapshotsView(opts.DB),
		login:     NewLoginForm(),
		spinner:   sp,
		tickers:   ti,
	}
	m.startCmd = m.run(d.Start())
	m.sync()
	return m
}

// run adapts dashboard commands to bubbletea commands.
func (m Model) run(cmds []event.Cmd) tea.Cmd {
	if len(cmds) == 0 {
		return nil
	}
	ctx := m.ctx
	batch := make([]tea.Cmd, 0, len(cmds))
	for _, c := range cmds {
		batch = append(batch, func() tea.Msg { return c(ctx) })
	}
	return tea.Batch(batch...)
}

func (m Model) meTick() tea.Cmd {
	if m.opts.MeInterval <= 0 {
		return nil
	}
	return tea.Tick(m.opts.MeInterval, func(time.Time) tea.Msg { return meTickMsg{} })
}

// sync pulls a fresh render model from the dashboard.
func (m *Model) sync() {
	prev := m.state.Selection.Screen
	m.state = m.dash.Snapshot()
	m.table.SetRows(m.state.Rows, m.state.Touched)
	if prev != view.Login && m.state.Selection.Screen == view.Login {
		m.login = NewLoginForm()
		m.active = ViewTable
	}
}

func (m Model) mode() string {
	if m.state.Selection.Pro {
		return "pro"
	}
	return "free"
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startCmd, m.spinner.Tick, textinput.Blink, m.meTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		tableWidth := m.width * TableWidthPct / 100
		paneHeight := m.height - 5 // navbar + bottom bars + borders
		m.table.Width = tableWidth
		m.table.Height = paneHeight
		m.detail.Width = m.width - tableWidth - 3
		m.detail.Height = paneHeight
		m.snapshots.SetSize(m.width, paneHeight)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case meTickMsg:
		return m, tea.Batch(m.run(m.dash.RefreshIdentity()), m.meTick())

	case clipboardMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Checkout link copied to clipboard"
		}
		return m, nil

	case snapshotSavedMsg:
		switch {
		case msg.err != nil:
			m.status = "Snapshot failed: " + msg.err.Error()
		case msg.created:
			m.status = fmt.Sprintf("Saved %s snapshot #%d", m.mode(), msg.rev)
		default:
			m.status = fmt.Sprintf("No changes since snapshot #%d", msg.rev)
		}
		return m, nil

	case snapshotsLoadedMsg, snapshotDiffMsg, snapshotDeletedMsg:
		var cmd tea.Cmd
		m.snapshots, cmd = m.snapshots.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state.Selection.Screen {
		case view.Login:
			return m.updateLogin(msg)
		case view.Loading:
			if msg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.updateDashboard(msg)
	}

	cmds, ok := m.dash.Handle(msg)
	if !ok {
		if m.state.Selection.Screen == view.Login {
			var cmd tea.Cmd
			m.login, cmd = m.login.Update(msg)
			return m, cmd
		}
		if m.editingTickers {
			var cmd tea.Cmd
			m.tickers, cmd = m.tickers.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	prevAuth := m.state.AuthErr
	m.sync()
	var extra tea.Cmd
	if m.state.AuthErr != nil && m.state.AuthErr != prevAuth {
		extra = m.login.ClearPassword()
	}
	return m, tea.Batch(m.run(cmds), extra)
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+t":
		m.login.Toggle()
		return m, nil
	case "enter":
		user, pass := m.login.Values()
		var cmds []event.Cmd
		if m.login.Signup {
			cmds = m.dash.Signup(user, pass)
		} else {
			cmds = m.dash.Login(user, pass)
		}
		m.status = ""
		m.sync()
		return m, m.run(cmds)
	}
	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Ticker input mode
	if m.editingTickers {
		switch msg.String() {
		case "enter":
			m.editingTickers = false
			m.tickers.Blur()
			f := m.dash.Filter()
			f.Tickers = types.ParseTickers(m.tickers.Value())
			cmds := m.dash.SetFilter(f)
			m.sync()
			return m, m.run(cmds)
		case "esc":
			m.editingTickers = false
			m.tickers.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.tickers, cmd = m.tickers.Update(msg)
		return m, cmd
	}

	// Sort picker mode
	if m.showFilterPicker {
		switch msg.String() {
		case "up", "k":
			m.filterPicker.MoveUp()
		case "down", "j":
			m.filterPicker.MoveDown()
		case "enter":
			m.showFilterPicker = false
			f := m.dash.Filter()
			f.Sort = m.filterPicker.Selected().Key
			cmds := m.dash.SetFilter(f)
			m.sync()
			return m, m.run(cmds)
		case "esc":
			m.showFilterPicker = false
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		if m.active == ViewTable {
			m.active = ViewSnapshots
			return m, m.snapshots.Open(m.mode(), m.dash.Table())
		}
		m.active = ViewTable
		return m, nil
	case "L":
		cmds := m.dash.Logout()
		m.status = ""
		m.sync()
		return m, m.run(cmds)
	case "i":
		return m, m.run(m.dash.RefreshIdentity())
	}

	if m.active == ViewSnapshots {
		var cmd tea.Cmd
		m.snapshots, cmd = m.snapshots.Update(msg)
		return m, cmd
	}

	free := m.state.Selection.Free
	switch msg.String() {
	case "up", "k":
		m.table.MoveUp()
	case "down", "j":
		m.table.MoveDown()
	case "r":
		cmds := m.dash.Refresh()
		m.sync()
		return m, m.run(cmds)
	case "S":
		return m, m.saveSnapshot()
	case "t":
		if !free {
			return m, nil
		}
		m.editingTickers = true
		m.tickers.SetValue(strings.Join(m.dash.Filter().Tickers, ", "))
		m.tickers.CursorEnd()
		return m, m.tickers.Focus()
	case "s":
		if !free {
			return m, nil
		}
		m.showFilterPicker = true
		m.filterPicker = NewFilterPicker(m.dash.Filter().Sort)
		m.filterPicker.Width = m.width
		m.filterPicker.Height = m.height
	case "+", "=", "-":
		if !free {
			return m, nil
		}
		f := m.dash.Filter()
		if msg.String() == "-" {
			f.Limit -= 5
			if f.Limit < 1 {
				f.Limit = 1
			}
		} else {
			f.Limit += 5
		}
		cmds := m.dash.SetFilter(f)
		m.sync()
		return m, m.run(cmds)
	case "u":
		if !m.state.Selection.Upgrade {
			return m, nil
		}
		cmds := m.dash.Checkout()
		m.status = ""
		m.sync()
		return m, m.run(cmds)
	case "c":
		url := m.state.Checkout.URL
		if url == "" {
			return m, nil
		}
		return m, func() tea.Msg { return clipboardMsg{err: clipboard.WriteAll(url)} }
	}
	return m, nil
}

func (m Model) saveSnapshot() tea.Cmd {
	if m.opts.DB == nil {
		return nil
	}
	db, mode, table := m.opts.DB, m.mode(), m.dash.Table()
	return func() tea.Msg {
		rev, created, _, err := snapshot.Create(db, mode, table, "")
		return snapshotSavedMsg{rev: rev, created: created, err: err}
	}
}

// --- View ---

func (m Model) View() string {
	switch m.state.Selection.Screen {
	case view.Login:
		status, isErr := "", false
		if m.state.AuthErr != nil {
			status, isErr = m.state.AuthErr.Error(), true
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.login.View(status, isErr))
	case view.Loading:
		return fmt.Sprintf("\n  %s Resolving account...\n", m.spinner.View())
	}

	if m.showFilterPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.filterPicker.View())
	}

	navbar := renderNavbar(m.active, m.identityLine(), [2]int{len(m.state.Rows), m.snapshots.Count()}, m.statsLine(), m.width)

	leftBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.table.Width).
		Height(m.table.Height)

	rightBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	var left, right string
	if m.active == ViewSnapshots {
		left = m.snapshots.ViewList()
		right = m.snapshots.ViewDetail()
	} else {
		left = m.table.View(m.emptyText())
		if row, ok := m.table.Selected(); ok {
			right = m.detail.ViewRow(row, m.table.Touched(row.Ticker), m.state.UpdatedAt)
		}
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftBorder.Render(left), rightBorder.Render(right))

	return lipgloss.JoinVertical(lipgloss.Left, navbar, panes, m.statusBar(), m.helpBar())
}

func (m Model) identityLine() string {
	who := m.state.Subject
	if who == "" {
		who = "signed in"
	}
	return fmt.Sprintf("%s · %s", who, m.state.Tier)
}

func (m Model) statsLine() string {
	var parts []string
	if m.state.Selection.Pro {
		parts = append(parts, m.proBadge())
	} else {
		f := m.state.Filter
		tk := "top"
		if len(f.Tickers) > 0 {
			tk = strings.Join(f.Tickers, ",")
		}
		parts = append(parts, fmt.Sprintf("%s · by %s · limit %d", tk, f.Sort, f.Limit))
		if m.state.FreeLoading {
			parts = append(parts, m.spinner.View()+" loading")
		}
	}
	if !m.state.UpdatedAt.IsZero() {
		parts = append(parts, "updated "+humanize.Time(m.state.UpdatedAt))
	}
	return strings.Join(parts, " · ")
}

func (m Model) proBadge() string {
	liveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	switch m.state.ProStatus {
	case channel.Live:
		return liveStyle.Render("● live")
	case channel.Connecting:
		return warnStyle.Render(m.spinner.View() + " connecting")
	case channel.Stalled:
		return warnStyle.Render(fmt.Sprintf("○ stalled, retry %d", m.state.ProAttempts))
	case channel.Offline:
		return errStyle.Render("○ offline")
	case channel.Denied:
		return errStyle.Render("○ not entitled")
	}
	return "○ idle"
}

func (m Model) emptyText() string {
	switch {
	case m.state.Selection.Pro:
		return "Waiting for live data..."
	case m.state.FreeLoading:
		return "Loading..."
	case m.state.FreeErr != nil:
		return "Could not load data."
	}
	return "No rows for this filter."
}

func (m Model) statusBar() string {
	style := lipgloss.NewStyle().Padding(0, 1)
	errStyle := style.Foreground(lipgloss.Color("196"))
	upStyle := style.Foreground(lipgloss.Color("62")).Bold(true)

	if m.editingTickers {
		return style.Render(m.tickers.View())
	}
	if m.status != "" {
		return style.Render(m.status)
	}
	co := m.state.Checkout
	switch {
	case co.Pending:
		return style.Render(m.spinner.View() + " Opening checkout...")
	case co.URL != "":
		return upStyle.Render("Checkout: " + co.URL + "  (c copy · i refresh after paying)")
	case co.Err != nil:
		return errStyle.Render("Upgrade failed: " + co.Err.Error())
	}
	if m.state.Selection.Pro && m.state.ProErr != nil && m.state.ProStatus != channel.Live {
		return errStyle.Render(m.state.ProErr.Error())
	}
	if m.state.FreeErr != nil {
		msg := m.state.FreeErr.Error()
		if api.IsTransport(m.state.FreeErr) {
			msg = "Showing last loaded data: " + msg
		}
		return errStyle.Render(msg)
	}
	if m.state.ResolveErr != nil {
		return errStyle.Render("Could not verify account: " + m.state.ResolveErr.Error())
	}
	if m.state.Selection.Upgrade {
		return upStyle.Render("Upgrade to Pro for live data: press u")
	}
	return ""
}

func (m Model) helpBar() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	var text string
	switch {
	case m.active == ViewSnapshots:
		text = "↑↓/jk navigate · enter scroll diff · d delete · tab dashboard"
	case m.state.Selection.Pro:
		text = "↑↓/jk navigate · r reconnect · S snapshot · tab snapshots"
	default:
		text = "↑↓/jk navigate · t tickers · s sort · +/- limit · r reload · S snapshot · u upgrade · tab snapshots"
	}
	return style.Render(text + " · i recheck · L logout · q quit")
}
