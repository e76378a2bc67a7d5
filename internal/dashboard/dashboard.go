// Package dashboard wires the session, the two data channels and the table
// together. It is the only writer of the table and of the mounted view, and
// is driven from a single goroutine: the bubbletea Update loop or Run.
package dashboard

import (
	"time"

	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/channel"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/reconcile"
	"github.com/lotas/tradersecho/internal/session"
	"github.com/lotas/tradersecho/internal/types"
	"github.com/lotas/tradersecho/internal/view"
)

// Checkout is the state of the last upgrade attempt.
type Checkout struct {
	Pending bool
	URL     string
	Err     error
}

// Model is a read-only view of the dashboard for rendering.
type Model struct {
	State     session.State
	Selection view.Selection
	Subject   string
	Tier      types.Tier

	Rows      []types.Row
	Touched   map[string]bool // tickers added or changed by the last apply
	UpdatedAt time.Time

	Filter      types.Filter
	FreeLoading bool
	FreeErr     error

	ProStatus   channel.Status
	ProErr      error
	ProAttempts int

	AuthErr    error
	ResolveErr error
	Checkout   Checkout
}

// Dashboard is the orchestrator. Not safe for concurrent use.
type Dashboard struct {
	sess *session.Controller
	free *channel.Free
	pro  *channel.Pro

	sel   view.Selection
	gen   uint64
	table reconcile.Table
	diff  reconcile.Changes

	checkout Checkout
}

// New returns a Dashboard over the given components. Nothing is mounted
// until Start.
func New(sess *session.Controller, free *channel.Free, pro *channel.Pro) *Dashboard {
	return &Dashboard{sess: sess, free: free, pro: pro}
}

// Session exposes the session controller for read access.
func (d *Dashboard) Session() *session.Controller { return d.sess }

// Start resolves a stored credential and mounts the initial view.
func (d *Dashboard) Start() []event.Cmd {
	cmds := compact(d.sess.Start())
	return append(cmds, d.sync()...)
}

// Login submits credentials. Returns nothing when not anonymous.
func (d *Dashboard) Login(username, password string) []event.Cmd {
	return compact(d.sess.Login(username, password))
}

// Signup creates an account.
func (d *Dashboard) Signup(username, password string) []event.Cmd {
	return compact(d.sess.Signup(username, password))
}

// Logout clears the credential and unmounts every channel in the same step.
func (d *Dashboard) Logout() []event.Cmd {
	d.sess.Logout()
	d.checkout = Checkout{}
	return d.sync()
}

// SetFilter changes the free list filter and reloads it when mounted.
func (d *Dashboard) SetFilter(f types.Filter) []event.Cmd {
	return compact(d.free.Load(f))
}

// Filter returns the current free list filter.
func (d *Dashboard) Filter() types.Filter { return d.free.Filter() }

// Refresh reloads whatever is mounted: the free list, or a stalled or
// offline pro subscription.
func (d *Dashboard) Refresh() []event.Cmd {
	switch {
	case d.sel.Free:
		return compact(d.free.Refresh())
	case d.sel.Pro:
		return d.pro.Reconnect()
	}
	return nil
}

// RefreshIdentity re-resolves the credential.
func (d *Dashboard) RefreshIdentity() []event.Cmd {
	return compact(d.sess.Refresh())
}

// Checkout starts an upgrade.
func (d *Dashboard) Checkout() []event.Cmd {
	cmd := d.sess.Checkout()
	if cmd == nil {
		return nil
	}
	d.checkout = Checkout{Pending: true}
	return []event.Cmd{cmd}
}

// Handle applies a message produced by one of the dashboard's commands.
// ok is false for messages the dashboard does not own.
func (d *Dashboard) Handle(msg event.Msg) (cmds []event.Cmd, ok bool) {
	switch msg := msg.(type) {
	case session.AuthResult:
		_, next := d.sess.HandleAuth(msg)
		cmds = compact(next)
		return append(cmds, d.sync()...), true

	case session.Resolved:
		if d.sess.HandleResolved(msg) {
			return d.sync(), true
		}
		return nil, true

	case session.CheckoutResult:
		if msg.Gen != d.sess.Generation() {
			return nil, true
		}
		d.checkout = Checkout{URL: msg.URL, Err: msg.Err}
		if msg.Err != nil {
			applog.Error("billing.checkout", msg.Err)
		} else {
			applog.Info("billing.checkout", "url", msg.URL)
		}
		return nil, true

	case channel.FreeLoaded:
		if rows, apply := d.free.Handle(msg); apply {
			d.apply(rows)
		}
		return nil, true

	case channel.ProBaseline, channel.ProGrace, channel.ProSubscribed, channel.ProBatch, channel.ProRetry:
		res := d.pro.Handle(msg)
		if res.Apply {
			d.apply(res.Rows)
		}
		cmds = res.Next
		if res.Denied != nil && d.sess.Demote(d.pro.Generation()) {
			cmds = append(cmds, d.sync()...)
		}
		return cmds, true
	}
	return nil, false
}

func (d *Dashboard) apply(rows []types.Row) {
	next := reconcile.Apply(d.table, rows)
	d.diff = reconcile.Diff(d.table, next)
	d.table = next
}

func (d *Dashboard) reset() {
	d.table = reconcile.Empty()
	d.diff = reconcile.Changes{}
}

// sync brings the mounted channels in line with the session state.
func (d *Dashboard) sync() []event.Cmd {
	to := view.Select(d.sess.State(), d.sess.ResolveFailed())
	gen := d.sess.Generation()
	steps := view.Plan(d.sel, to, gen != d.gen)
	d.gen = gen

	var cmds []event.Cmd
	for _, step := range steps {
		switch step {
		case view.UnmountPro:
			cmds = append(cmds, compact(d.pro.Deactivate())...)
		case view.UnmountFree:
			d.free.Deactivate()
		case view.MountFree:
			cmds = append(cmds, compact(d.free.Activate(d.sess.Credential()))...)
		case view.MountPro:
			cmds = append(cmds, d.pro.Activate(d.sess.Credential(), gen)...)
		}
		d.reset()
	}
	if len(steps) > 0 || d.sel != to {
		applog.Info("view.select", "screen", to.Screen, "steps", len(steps))
	}
	d.sel = to
	return cmds
}

// Snapshot returns the render model.
func (d *Dashboard) Snapshot() Model {
	m := Model{
		State:       d.sess.State(),
		Selection:   d.sel,
		Subject:     d.sess.Subject(),
		Tier:        d.sess.Identity().Tier,
		Rows:        d.table.Rows(),
		Touched:     d.diff.Touched(),
		Filter:      d.free.Filter(),
		FreeLoading: d.free.Loading(),
		FreeErr:     d.free.Err(),
		ProStatus:   d.pro.Status(),
		ProErr:      d.pro.Err(),
		ProAttempts: d.pro.Attempts(),
		AuthErr:     d.sess.AuthErr(),
		ResolveErr:  d.sess.ResolveErr(),
		Checkout:    d.checkout,
	}
	switch {
	case d.sel.Free:
		m.UpdatedAt = d.free.UpdatedAt()
	case d.sel.Pro:
		m.UpdatedAt = d.pro.UpdatedAt()
	}
	return m
}

// Table returns the current table.
func (d *Dashboard) Table() reconcile.Table { return d.table }

func compact(cmds ...event.Cmd) []event.Cmd {
	var out []event.Cmd
	for _, c := range cmds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
