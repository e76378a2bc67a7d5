// Package event holds the primitives shared by the dashboard core and its
// two drivers (the bubbletea program and the headless Loop).
//
// State is only ever mutated on the loop goroutine. A Cmd performs blocking
// IO on its own goroutine and reports back with a Msg; the owner of the state
// decides on the loop goroutine whether that Msg is still current.
package event

import (
	"context"
	"sync"
	"time"
)

// Msg is the result of a Cmd, delivered back to the loop that issued it.
type Msg any

// Cmd is deferred IO. It must not touch loop-owned state; everything it
// learns travels back in the returned Msg. A nil Msg is dropped.
type Cmd func(ctx context.Context) Msg

// After returns a Cmd that yields msg once d has elapsed, or nil if ctx is
// cancelled first.
func After(d time.Duration, msg Msg) Cmd {
	return func(ctx context.Context) Msg {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

// Bound derives a context that is cancelled when either parent or scope is.
// Cmds use it to honour both the runner's lifetime and a component's
// activation lifetime.
func Bound(parent, scope context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(scope, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Loop runs Cmds on goroutines and serializes their results onto a single
// channel, for callers that have no bubbletea program.
type Loop struct {
	ctx  context.Context
	msgs chan Msg
	wg   sync.WaitGroup
}

// NewLoop creates a Loop whose Cmds receive ctx.
func NewLoop(ctx context.Context) *Loop {
	return &Loop{
		ctx:  ctx,
		msgs: make(chan Msg, 64),
	}
}

// Go starts each non-nil cmd.
func (l *Loop) Go(cmds ...Cmd) {
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		l.wg.Add(1)
		go func(cmd Cmd) {
			defer l.wg.Done()
			msg := cmd(l.ctx)
			if msg == nil {
				return
			}
			select {
			case l.msgs <- msg:
			case <-l.ctx.Done():
			}
		}(cmd)
	}
}

// Msgs returns the channel results arrive on.
func (l *Loop) Msgs() <-chan Msg {
	return l.msgs
}

// Wait blocks until every started Cmd has returned.
func (l *Loop) Wait() {
	l.wg.Wait()
}
