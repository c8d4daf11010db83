// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reachability

import (
	"context"
	"sync"
)

// A Status is the observed connectivity of the network path to the
// backend.
type Status int

const (
	// Unknown means no observation has been made yet.
	Unknown Status = iota
	// Reachable means the backend can be reached.
	Reachable
	// Unreachable means the backend cannot currently be reached.
	Unreachable
)

var statusNames = []string{
	"Unknown",
	"Reachable",
	"Unreachable",
}

// String returns the name of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Status(?)"
	}
	return statusNames[s]
}

// A Monitor publishes reachability changes.
//
// Subscribe returns a channel that receives the current status (unless
// it is Unknown) followed by every later change. A slow subscriber
// sees only the most recent status. The channel is closed once ctx is
// done.
type Monitor interface {
	Subscribe(ctx context.Context) <-chan Status
}

// A Manual is a Monitor whose status is set programmatically, for
// example by a platform-specific connectivity callback. The zero value
// is ready to use and starts in the Unknown status.
type Manual struct {
	lock   sync.Mutex
	status Status
	subs   map[*subscriber]struct{}
}

// Set changes the status and notifies subscribers. Setting the current
// status again is a no-op.
func (m *Manual) Set(s Status) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if s == m.status {
		return
	}
	m.status = s
	for sub := range m.subs {
		sub.offer(s)
	}
}

// Status returns the current status.
func (m *Manual) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.status
}

func (m *Manual) Subscribe(ctx context.Context) <-chan Status {
	sub := newSubscriber()
	m.lock.Lock()
	if m.subs == nil {
		m.subs = make(map[*subscriber]struct{})
	}
	m.subs[sub] = struct{}{}
	if m.status != Unknown {
		sub.offer(m.status)
	}
	m.lock.Unlock()

	out := make(chan Status)
	go func() {
		defer close(out)
		defer func() {
			m.lock.Lock()
			delete(m.subs, sub)
			m.lock.Unlock()
		}()
		sub.pump(ctx, out)
	}()
	return out
}

// A subscriber holds at most one undelivered status, replacing it with
// newer ones so publishers never block.
type subscriber struct {
	lock    sync.Mutex
	pending Status
	has     bool
	signal  chan struct{}
}

func newSubscriber() *subscriber {
	return &subscriber{signal: make(chan struct{}, 1)}
}

func (s *subscriber) offer(st Status) {
	s.lock.Lock()
	s.pending, s.has = st, true
	s.lock.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() (Status, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	st, ok := s.pending, s.has
	s.has = false
	return st, ok
}

func (s *subscriber) pump(ctx context.Context, out chan<- Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.signal:
		}
		st, ok := s.take()
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case out <- st:
		}
	}
}
