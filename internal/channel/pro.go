package channel

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/lotas/tradersecho/internal/api"
	"github.com/lotas/tradersecho/internal/applog"
	"github.com/lotas/tradersecho/internal/event"
	"github.com/lotas/tradersecho/internal/stream"
	"github.com/lotas/tradersecho/internal/types"
)

// Status is the Pro channel's connection state. Only Live data may be
// presented as live.
type Status int

const (
	Idle Status = iota
	Connecting
	Live
	Stalled
	Offline
	Denied
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Stalled:
		return "stalled"
	case Offline:
		return "offline"
	case Denied:
		return "denied"
	default:
		return "idle"
	}
}

// ProSource fetches the realtime baseline. *api.Client satisfies it.
type ProSource interface {
	ProSnapshot(ctx context.Context, token, window string) ([]types.Row, error)
}

// Subscription is an open push connection. *stream.Subscription satisfies it.
type Subscription interface {
	Next(ctx context.Context) ([]types.Row, error)
	Close() error
}

// Dialer opens a push subscription for token.
type Dialer func(ctx context.Context, token string) (Subscription, error)

// StreamDialer dials the realtime endpoint below base.
func StreamDialer(base string) Dialer {
	return func(ctx context.Context, token string) (Subscription, error) {
		sub, err := stream.Dial(ctx, base, token)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}
}

// RetryPolicy bounds reconnection of a dropped subscription.
type RetryPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// ProOptions configures a Pro channel.
type ProOptions struct {
	Window string
	// Grace is how long to wait for the baseline before subscribing anyway.
	Grace time.Duration
	Retry RetryPolicy
}

// Messages produced by Pro commands. Each carries the activation it was
// issued under.
type (
	ProBaseline struct {
		Activation uint64
		Seq        uint64 // snapshot request number
		Batches    uint64 // batches received when the request was issued
		Fallback   bool
		Rows       []types.Row
		Err        error
	}
	ProGrace struct {
		Activation uint64
	}
	ProSubscribed struct {
		Activation uint64
		Sub        Subscription
		Err        error
	}
	ProBatch struct {
		Activation uint64
		Sub        Subscription
		Rows       []types.Row
		Err        error
	}
	ProRetry struct {
		Activation uint64
	}
)

// Result tells the caller what to do after Handle.
type Result struct {
	Rows  []types.Row
	Apply bool
	// Denied is set when the server refused the credential's entitlement.
	// The caller demotes the session generation the channel was activated
	// under.
	Denied error
	Next   []event.Cmd
}

// Pro is the realtime channel.
type Pro struct {
	src  ProSource
	dial Dialer
	opts ProOptions

	active     bool
	activation uint64
	gen        uint64
	token      string
	ctx        context.Context
	cancel     context.CancelFunc

	status      Status
	sub         Subscription
	subscribing bool
	batches     uint64
	snapSeq     uint64
	attempts    int
	bo          *backoff.ExponentialBackOff

	err     error
	updated time.Time
}

// NewPro returns an inactive Pro channel.
func NewPro(src ProSource, dial Dialer, opts ProOptions) *Pro {
	if opts.Window == "" {
		opts.Window = "5m"
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	return &Pro{src: src, dial: dial, opts: opts}
}

func (p *Pro) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if p.opts.Retry.Initial > 0 {
		bo.InitialInterval = p.opts.Retry.Initial
	}
	if p.opts.Retry.Max > 0 {
		bo.MaxInterval = p.opts.Retry.Max
	}
	bo.Reset()
	return bo
}

// Activate mounts the channel for the credential of session generation
// gen. It returns the baseline request and the grace timer.
func (p *Pro) Activate(token string, gen uint64) []event.Cmd {
	closePrev := p.Deactivate()
	p.activation++
	p.active = true
	p.gen = gen
	p.token = token
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.status = Connecting
	p.batches = 0
	p.attempts = 0
	p.bo = p.newBackOff()
	p.err = nil
	p.updated = time.Time{}
	applog.Info("pro.activate", "activation", p.activation, "gen", gen)

	cmds := compact(closePrev, p.snapshot(false))
	if p.opts.Grace > 0 {
		cmds = append(cmds, event.After(p.opts.Grace, ProGrace{Activation: p.activation}))
	}
	return cmds
}

// Deactivate unmounts the channel. Nothing issued under the current
// activation is applied afterwards. The returned command closes the open
// subscription, if any.
func (p *Pro) Deactivate() event.Cmd {
	if !p.active {
		return nil
	}
	p.activation++
	p.active = false
	p.status = Idle
	p.subscribing = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	sub := p.sub
	p.sub = nil
	applog.Info("pro.deactivate", "activation", p.activation)
	return closeCmd(sub)
}

// Reconnect restarts the retry cycle after the channel went Offline or
// Stalled.
func (p *Pro) Reconnect() []event.Cmd {
	if !p.active || (p.status != Offline && p.status != Stalled) {
		return nil
	}
	p.attempts = 0
	p.bo.Reset()
	p.status = Connecting
	applog.Info("pro.reconnect", "activation", p.activation)
	return compact(p.subscribe(), p.snapshot(true))
}

func (p *Pro) snapshot(fallback bool) event.Cmd {
	p.snapSeq++
	activation, seq, batches := p.activation, p.snapSeq, p.batches
	src, token, window, scope := p.src, p.token, p.opts.Window, p.ctx
	return func(ctx context.Context) event.Msg {
		ctx, cancel := event.Bound(ctx, scope)
		defer cancel()
		rows, err := src.ProSnapshot(ctx, token, window)
		return ProBaseline{Activation: activation, Seq: seq, Batches: batches, Fallback: fallback, Rows: rows, Err: err}
	}
}

func (p *Pro) subscribe() event.Cmd {
	if p.sub != nil || p.subscribing || p.status == Denied {
		return nil
	}
	p.subscribing = true
	activation, token, dial, scope := p.activation, p.token, p.dial, p.ctx
	return func(ctx context.Context) event.Msg {
		ctx, cancel := event.Bound(ctx, scope)
		defer cancel()
		sub, err := dial(ctx, token)
		return ProSubscribed{Activation: activation, Sub: sub, Err: err}
	}
}

// firstSubscribe opens the initial subscription of an activation. Once the
// channel has left Connecting, reconnects belong to the retry schedule.
func (p *Pro) firstSubscribe() event.Cmd {
	if p.status != Connecting {
		return nil
	}
	return p.subscribe()
}

func (p *Pro) read(sub Subscription) event.Cmd {
	activation, scope := p.activation, p.ctx
	return func(ctx context.Context) event.Msg {
		ctx, cancel := event.Bound(ctx, scope)
		defer cancel()
		rows, err := sub.Next(ctx)
		return ProBatch{Activation: activation, Sub: sub, Rows: rows, Err: err}
	}
}

// Handle processes a Pro message on the loop goroutine.
func (p *Pro) Handle(msg event.Msg) Result {
	switch msg := msg.(type) {
	case ProBaseline:
		return p.handleBaseline(msg)
	case ProGrace:
		if !p.current(msg.Activation) {
			return Result{}
		}
		return Result{Next: compact(p.firstSubscribe())}
	case ProSubscribed:
		return p.handleSubscribed(msg)
	case ProBatch:
		return p.handleBatch(msg)
	case ProRetry:
		if !p.current(msg.Activation) || p.status != Stalled {
			return Result{}
		}
		applog.Info("pro.retry", "attempt", p.attempts)
		return Result{Next: compact(p.subscribe(), p.snapshot(true))}
	}
	return Result{}
}

func (p *Pro) current(activation uint64) bool {
	return p.active && activation == p.activation
}

func (p *Pro) handleBaseline(msg ProBaseline) Result {
	if !p.current(msg.Activation) {
		applog.Info("pro.baseline.stale", "activation", msg.Activation)
		return Result{}
	}
	if msg.Err != nil {
		if api.IsEntitlement(msg.Err) {
			return p.deny(msg.Err)
		}
		p.err = msg.Err
		applog.Error("pro.baseline", msg.Err, "fallback", msg.Fallback)
		if msg.Fallback {
			return Result{}
		}
		return Result{Next: compact(p.firstSubscribe())}
	}

	var res Result
	switch {
	case msg.Batches != p.batches:
		applog.Info("pro.baseline.superseded", "seq", msg.Seq)
	case msg.Seq != p.snapSeq:
		applog.Info("pro.baseline.stale", "seq", msg.Seq, "current", p.snapSeq)
	default:
		res.Rows, res.Apply = msg.Rows, true
		p.updated = time.Now()
		applog.Info("pro.baseline", "rows", len(msg.Rows), "fallback", msg.Fallback)
	}
	if !msg.Fallback {
		res.Next = compact(p.firstSubscribe())
	}
	return res
}

func (p *Pro) handleSubscribed(msg ProSubscribed) Result {
	if !p.current(msg.Activation) {
		return Result{Next: compact(closeCmd(msg.Sub))}
	}
	p.subscribing = false
	if p.status == Denied {
		applog.Info("pro.subscribed.denied", "activation", p.activation)
		return Result{Next: compact(closeCmd(msg.Sub))}
	}
	if msg.Err != nil {
		if stream.IsEntitlement(msg.Err) {
			return p.deny(msg.Err)
		}
		p.err = msg.Err
		applog.Error("pro.subscribe", msg.Err, "attempt", p.attempts)
		return Result{Next: compact(p.stall())}
	}
	p.sub = msg.Sub
	applog.Info("pro.subscribed", "activation", p.activation)
	return Result{Next: []event.Cmd{p.read(msg.Sub)}}
}

func (p *Pro) handleBatch(msg ProBatch) Result {
	if !p.current(msg.Activation) || msg.Sub != p.sub {
		return Result{}
	}
	if msg.Err != nil {
		p.sub = nil
		if stream.IsEntitlement(msg.Err) {
			return p.deny(msg.Err)
		}
		p.err = msg.Err
		applog.Error("pro.stalled", msg.Err, "batches", p.batches)
		return Result{Next: compact(closeCmd(msg.Sub), p.stall())}
	}
	p.batches++
	p.attempts = 0
	p.bo.Reset()
	p.status = Live
	p.err = nil
	p.updated = time.Now()
	return Result{Rows: msg.Rows, Apply: true, Next: []event.Cmd{p.read(msg.Sub)}}
}

// stall marks the channel Stalled and schedules the next retry, or goes
// Offline once the attempts are used up.
func (p *Pro) stall() event.Cmd {
	p.attempts++
	if p.attempts > p.opts.Retry.MaxAttempts {
		p.status = Offline
		applog.Info("pro.offline", "attempts", p.attempts-1)
		return nil
	}
	d := p.bo.NextBackOff()
	if d == backoff.Stop {
		p.status = Offline
		return nil
	}
	p.status = Stalled
	applog.Info("pro.retry.scheduled", "attempt", p.attempts, "in", d)
	return event.After(d, ProRetry{Activation: p.activation})
}

func (p *Pro) deny(err error) Result {
	p.status = Denied
	p.subscribing = false
	p.err = err
	applog.Error("pro.denied", err, "gen", p.gen)
	var next []event.Cmd
	if p.sub != nil {
		next = append(next, closeCmd(p.sub))
		p.sub = nil
	}
	return Result{Denied: err, Next: next}
}

// Status returns the connection state.
func (p *Pro) Status() Status { return p.status }

// Active reports whether the channel is mounted.
func (p *Pro) Active() bool { return p.active }

// Generation is the session generation of the current activation.
func (p *Pro) Generation() uint64 { return p.gen }

// Err is the last failure seen by the channel.
func (p *Pro) Err() error { return p.err }

// Attempts is the number of reconnect attempts since the last batch.
func (p *Pro) Attempts() int { return p.attempts }

// UpdatedAt is when rows were last applied.
func (p *Pro) UpdatedAt() time.Time { return p.updated }

func closeCmd(sub Subscription) event.Cmd {
	if sub == nil {
		return nil
	}
	return func(context.Context) event.Msg {
		sub.Close()
		return nil
	}
}

func compact(cmds ...event.Cmd) []event.Cmd {
	out := cmds[:0]
	for _, c := range cmds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
