// Package view maps the session state to what is on screen and which data
// channel is mounted.
package view

import (
	"github.com/lotas/tradersecho/internal/session"
)

// Screen is the main area shown to the user.
type Screen int

const (
	Login Screen = iota
	Loading
	FreeList
	ProLive
)

func (s Screen) String() string {
	switch s {
	case Loading:
		return "loading"
	case FreeList:
		return "free"
	case ProLive:
		return "pro"
	default:
		return "login"
	}
}

// Selection is the output of Select.
type Selection struct {
	Screen  Screen
	Free    bool // Free channel mounted
	Pro     bool // Pro channel mounted
	Upgrade bool // upgrade affordance shown
}

// Select maps a session state to a Selection. A Pending identity shows the
// loading placeholder until resolution fails, after which it is treated as
// Free.
func Select(state session.State, resolveFailed bool) Selection {
	switch state {
	case session.Pending:
		if resolveFailed {
			return Select(session.Free, false)
		}
		return Selection{Screen: Loading}
	case session.Free:
		return Selection{Screen: FreeList, Free: true, Upgrade: true}
	case session.Pro:
		return Selection{Screen: ProLive, Pro: true}
	default:
		return Selection{Screen: Login}
	}
}

// Step is one mount or unmount action.
type Step int

const (
	UnmountPro Step = iota
	UnmountFree
	MountFree
	MountPro
)

func (s Step) String() string {
	switch s {
	case UnmountPro:
		return "unmount-pro"
	case UnmountFree:
		return "unmount-free"
	case MountFree:
		return "mount-free"
	default:
		return "mount-pro"
	}
}

// Plan returns the steps that take the mounted channels from one selection
// to the next. Unmounts come first and the Pro unmount always leads, so no
// state is entered while a Pro channel is still mounted. remount forces
// channels that stay mounted to be torn down and mounted again, as after a
// credential change.
func Plan(from, to Selection, remount bool) []Step {
	var steps []Step
	if from.Pro && (!to.Pro || remount) {
		steps = append(steps, UnmountPro)
	}
	if from.Free && (!to.Free || remount) {
		steps = append(steps, UnmountFree)
	}
	if to.Free && (!from.Free || remount) {
		steps = append(steps, MountFree)
	}
	if to.Pro && (!from.Pro || remount) {
		steps = append(steps, MountPro)
	}
	return steps
}
