// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

// A State is the dispatch state of a Client.
type State int

const (
	// Active means the client is enabled and not paused. Pending calls
	// are dispatched as soon as they are due.
	Active State = iota
	// Suspended means the client is enabled but paused. New calls are
	// accepted and held, but nothing is dispatched.
	Suspended
	// Blocked means the client is disabled. Sends fail with
	// ErrDisabled and nothing is pending.
	Blocked
)

var stateNames = []string{
	"Active",
	"Suspended",
	"Blocked",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

// gate holds the dispatch state. While Blocked, wake remembers whether
// the client was paused, so enabling returns to Suspended or Active.
type gate struct {
	state State
	wake  State
}

func newGate(disabled bool) gate {
	if disabled {
		return gate{state: Blocked, wake: Active}
	}
	return gate{state: Active}
}

func (g *gate) pause() bool {
	switch g.state {
	case Active:
		g.state = Suspended
		return true
	case Blocked:
		g.wake = Suspended
	}
	return false
}

func (g *gate) resume() bool {
	switch g.state {
	case Suspended:
		g.state = Active
		return true
	case Blocked:
		g.wake = Active
	}
	return false
}

func (g *gate) disable() bool {
	if g.state == Blocked {
		return false
	}
	g.wake, g.state = g.state, Blocked
	return true
}

func (g *gate) enable() bool {
	if g.state != Blocked {
		return false
	}
	g.state = g.wake
	return true
}
