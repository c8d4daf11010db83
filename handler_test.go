// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gogama/httpq/request"
	"github.com/stretchr/testify/assert"
)

func TestHandlerGroup(t *testing.T) {
	var evts []string
	var calls []*request.Call
	h1 := &testHandler{seq: 1, evts: &evts, calls: &calls}
	h2 := &testHandler{seq: 2, evts: &evts, calls: &calls}
	g := &HandlerGroup{}
	t.Run("PushBack", func(t *testing.T) {
		assert.PanicsWithValue(t, "httpq: nil handler", func() { g.PushBack(AfterEnqueue, nil) })
		assert.Panics(t, func() { g.PushBack(Event(123), h1) })
		g.PushBack(AfterEnqueue, h1)
		g.PushBack(AfterEnqueue, h2)
		g.PushBack(AfterAttempt, h1)
	})
	t.Run("run", func(t *testing.T) {
		c1 := &request.Call{Attempt: 1}
		c2 := &request.Call{Attempt: 2}
		assert.Empty(t, evts)
		assert.Empty(t, calls)
		g.run(AfterCallEnd, c1)
		assert.Empty(t, evts)
		assert.Empty(t, calls)
		g.run(AfterEnqueue, c1)
		assert.Equal(t, []string{"1.AfterEnqueue", "2.AfterEnqueue"}, evts)
		assert.Equal(t, []*request.Call{c1, c1}, calls)
		evts = evts[:0]
		calls = calls[:0]
		g.run(AfterAttempt, c2)
		assert.Equal(t, []string{"1.AfterAttempt"}, evts)
		assert.Equal(t, []*request.Call{c2}, calls)
	})
	t.Run("Len", func(t *testing.T) {
		assert.Equal(t, 2, g.Len(AfterEnqueue))
		assert.Equal(t, 1, g.Len(AfterAttempt))
		assert.Equal(t, 0, g.Len(AfterCallEnd))
	})
	t.Run("zero value", func(t *testing.T) {
		var empty HandlerGroup
		assert.NotPanics(t, func() { empty.run(AfterCallEnd, &request.Call{}) })
		assert.Equal(t, 0, empty.Len(AfterCallEnd))
	})
}

func TestHandlerGroup_PushBackDuringRun(t *testing.T) {
	g := &HandlerGroup{}
	var n int
	var late HandlerFunc = func(Event, *request.Call) { n += 10 }
	g.PushBack(AfterAttempt, HandlerFunc(func(Event, *request.Call) {
		n++
		if g.Len(AfterAttempt) == 1 {
			g.PushBack(AfterAttempt, late)
		}
	}))
	g.run(AfterAttempt, &request.Call{})
	assert.Equal(t, 1, n)
	g.run(AfterAttempt, &request.Call{})
	assert.Equal(t, 12, n)
}

func TestHandlerGroup_Concurrent(t *testing.T) {
	g := &HandlerGroup{}
	var n int64
	count := HandlerFunc(func(Event, *request.Call) { atomic.AddInt64(&n, 1) })
	g.PushBack(BeforeAttempt, count)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.run(BeforeAttempt, &request.Call{})
			}
		}()
		go func() {
			defer wg.Done()
			g.PushBack(BeforeAttempt, count)
		}()
	}
	wg.Wait()
	assert.Equal(t, 9, g.Len(BeforeAttempt))
	assert.GreaterOrEqual(t, atomic.LoadInt64(&n), int64(800))
}

type testHandler struct {
	seq   int
	evts  *[]string
	calls *[]*request.Call
}

func (h *testHandler) Handle(evt Event, c *request.Call) {
	*h.evts = append(*h.evts, fmt.Sprintf("%d.%s", h.seq, evt))
	*h.calls = append(*h.calls, c)
}

func TestHandlerFunc(t *testing.T) {
	var _evt Event
	var _c *request.Call
	var f = func(evt Event, c *request.Call) {
		_evt = evt
		_c = c
	}
	h := HandlerFunc(f)
	c := &request.Call{}
	h.Handle(AfterRetryScheduled, c)

	assert.Equal(t, AfterRetryScheduled, _evt)
	assert.Same(t, c, _c)
}
