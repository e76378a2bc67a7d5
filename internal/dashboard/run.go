package dashboard

import (
	"context"

	"github.com/lotas/tradersecho/internal/event"
)

// Run drives d without a terminal UI. It starts cmds, then feeds every
// result back through Handle on the calling goroutine. After each handled
// message update is called with the new model; Run returns when update
// returns false, before starting that message's follow-up commands, or when
// ctx is done.
func Run(ctx context.Context, d *Dashboard, cmds []event.Cmd, update func(Model) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	loop := event.NewLoop(ctx)
	defer func() {
		cancel()
		loop.Wait()
	}()

	loop.Go(cmds...)
	if !update(d.Snapshot()) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-loop.Msgs():
			next, _ := d.Handle(msg)
			if !update(d.Snapshot()) {
				return nil
			}
			loop.Go(next...)
		}
	}
}
