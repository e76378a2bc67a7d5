// Package channel implements the two data channels: Free, a REST pull of
// the delayed daily rollup, and Pro, a baseline snapshot followed by a push
// subscription.
//
// Channels never touch the table themselves. Their Handle methods decide on
// the loop goroutine whether a result is still current and hand the rows
// back to the caller, which owns the table.
package channel

import (
	"context"
	"time"

	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/types"
)

// FreeSource loads the daily rollup. *api.Client satisfies it.
type FreeSource interface {
	FreeDaily(ctx context.Context, token string, f types.Filter) ([]types.Row, error)
}

// FreeLoaded is the result of one Free load.
type FreeLoaded struct {
	Activation uint64
	Seq        uint64
	Filter     types.Filter
	Rows       []types.Row
	Err        error
}

// Free is the polling channel. Each activation and each load get a number;
// only the newest load of the current activation may reach the table.
type Free struct {
	src    FreeSource
	filter types.Filter

	active     bool
	activation uint64
	seq        uint64
	token      string
	ctx        context.Context
	cancel     context.CancelFunc

	loading bool
	err     error
	updated time.Time
}

// NewFree returns an inactive Free channel starting with filter.
func NewFree(src FreeSource, filter types.Filter) *Free {
	return &Free{src: src, filter: filter.Normalize()}
}

// Activate mounts the channel and returns the initial load. token may be
// empty; the daily endpoint needs no credential.
func (f *Free) Activate(token string) event.Cmd {
	f.stop()
	f.activation++
	f.active = true
	f.token = token
	f.err = nil
	f.updated = time.Time{}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	applog.Info("free.activate", "activation", f.activation)
	return f.load()
}

// Deactivate unmounts the channel. Loads still in flight become stale and
// are cancelled.
func (f *Free) Deactivate() {
	if !f.active {
		return
	}
	f.stop()
	f.activation++
	f.active = false
	f.loading = false
	applog.Info("free.deactivate", "activation", f.activation)
}

func (f *Free) stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Load replaces the filter and, when active, returns the load for it.
func (f *Free) Load(filter types.Filter) event.Cmd {
	f.filter = filter.Normalize()
	if !f.active {
		return nil
	}
	return f.load()
}

// Refresh reloads the current filter.
func (f *Free) Refresh() event.Cmd {
	if !f.active {
		return nil
	}
	return f.load()
}

func (f *Free) load() event.Cmd {
	f.seq++
	f.loading = true
	activation, seq, filter, token, src, scope := f.activation, f.seq, f.filter, f.token, f.src, f.ctx
	return func(ctx context.Context) event.Msg {
		ctx, cancel := event.Bound(ctx, scope)
		defer cancel()
		rows, err := src.FreeDaily(ctx, token, filter)
		return FreeLoaded{Activation: activation, Seq: seq, Filter: filter, Rows: rows, Err: err}
	}
}

// Handle decides whether msg may reach the table. A failed load keeps the
// last rows and records a soft error.
func (f *Free) Handle(msg FreeLoaded) (rows []types.Row, apply bool) {
	if !f.active || msg.Activation != f.activation || msg.Seq != f.seq {
		applog.Info("free.stale", "activation", msg.Activation, "seq", msg.Seq)
		return nil, false
	}
	f.loading = false
	if msg.Err != nil {
		f.err = msg.Err
		applog.Error("free.load", msg.Err, "seq", msg.Seq)
		return nil, false
	}
	f.err = nil
	f.updated = time.Now()
	applog.Info("free.load", "seq", msg.Seq, "rows", len(msg.Rows))
	return msg.Rows, true
}

// Filter returns the current filter.
func (f *Free) Filter() types.Filter { return f.filter }

// Active reports whether the channel is mounted.
func (f *Free) Active() bool { return f.active }

// Loading reports whether the newest load is still outstanding.
func (f *Free) Loading() bool { return f.loading }

// Err is the soft error from the newest load, if it failed.
func (f *Free) Err() error { return f.err }

// UpdatedAt is when rows were last applied.
func (f *Free) UpdatedAt() time.Time { return f.updated }
