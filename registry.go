// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"context"
	"sort"
	"time"

	"github.com/gogama/httpq/request"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// A Callback receives the terminal outcome of a call. It is invoked
// exactly once per call, outside the client's lock, with err nil on
// success.
type Callback func(c *request.Call, err error)

// pendingCall is the registry's record of one call. Every field is
// guarded by the owning Client's lock.
type pendingCall struct {
	call *request.Call
	done Callback
	seq  uint64

	cancelled bool
	inflight  bool
	// due is when the call becomes eligible for dispatch. The zero
	// value means immediately.
	due time.Time

	timer    clockwork.Timer
	timerSeq uint64

	attemptSeq uint64
	abort      context.CancelFunc

	reservation *rate.Reservation
	stopWatch   func() bool
}

// registry indexes pending calls by ID.
type registry map[string]*pendingCall

func (r registry) has(pc *pendingCall) bool {
	return r[pc.call.ID] == pc
}

// sorted returns the pending calls in the order they were accepted.
func (r registry) sorted() []*pendingCall {
	pcs := make([]*pendingCall, 0, len(r))
	for _, pc := range r {
		pcs = append(pcs, pc)
	}
	sort.Slice(pcs, func(i, j int) bool {
		return pcs[i].seq < pcs[j].seq
	})
	return pcs
}
