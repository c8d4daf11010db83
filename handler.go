// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"sync"

	"github.com/gogama/httpq/request"
)

// A HandlerGroup is a group of event handler chains which can be
// installed in one or more Clients.
//
// Handlers may be added while clients using the group are running. A
// handler added during an event is first invoked for the next event.
type HandlerGroup struct {
	lock     sync.RWMutex
	handlers [][]Handler
}

// PushBack adds an event handler to the back of the event handler chain
// for a specific event type.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("httpq: nil handler")
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}
	chain := g.handlers[evt]
	// Copy so that a chain being run is never appended to in place.
	g.handlers[evt] = append(chain[:len(chain):len(chain)], h)
}

// Len returns the number of handlers in the chain for evt.
func (g *HandlerGroup) Len(evt Event) int {
	return len(g.chain(evt))
}

func (g *HandlerGroup) chain(evt Event) []Handler {
	g.lock.RLock()
	defer g.lock.RUnlock()

	i := int(evt)
	if i < len(g.handlers) {
		return g.handlers[i]
	}
	return nil
}

func (g *HandlerGroup) run(evt Event, c *request.Call) {
	for _, h := range g.chain(evt) {
		h.Handle(evt, c)
	}
}

// A Handler handles the occurrence of an event during the life of a
// call. Handlers run while the client's lock is held, so they must not
// call methods of the client.
type Handler interface {
	Handle(Event, *request.Call)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *request.Call)

// Handle calls f(evt, c).
func (f HandlerFunc) Handle(evt Event, c *request.Call) {
	f(evt, c)
}
