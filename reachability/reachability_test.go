// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reachability

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Status) Status {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "channel closed")
		return s
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for status")
		return Unknown
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Unknown", Unknown.String())
	assert.Equal(t, "Reachable", Reachable.String())
	assert.Equal(t, "Unreachable", Unreachable.String())
	assert.Equal(t, "Status(?)", Status(-1).String())
}

func TestManual(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var m Manual
	ch := m.Subscribe(ctx)

	m.Set(Unreachable)
	assert.Equal(t, Unreachable, recv(t, ch))
	m.Set(Unreachable)
	m.Set(Reachable)
	assert.Equal(t, Reachable, recv(t, ch))
	assert.Equal(t, Reachable, m.Status())

	t.Run("late subscriber sees current status", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())
		defer cancel2()
		assert.Equal(t, Reachable, recv(t, m.Subscribe(ctx2)))
	})

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestManual_LatestWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var m Manual
	ch := m.Subscribe(ctx)
	for i := 0; i < 1000; i++ {
		m.Set(Unreachable)
		m.Set(Reachable)
	}
	m.Set(Unreachable)
	var last Status
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last == Unreachable
	}, 5*time.Second, time.Millisecond)
}

type fakeConn struct {
	net.Conn
	closed *int32
}

func (c fakeConn) Close() error {
	atomic.AddInt32(c.closed, 1)
	return nil
}

func TestProber(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var up int32 = 1
	var closed int32
	var dials int32
	p := &Prober{
		Address:  "backend:443",
		Interval: time.Minute,
		Clock:    clock,
		Dial: func(_ context.Context, network, address string) (net.Conn, error) {
			atomic.AddInt32(&dials, 1)
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "backend:443", address)
			if atomic.LoadInt32(&up) == 1 {
				return fakeConn{closed: &closed}, nil
			}
			return nil, errors.New("connection refused")
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := p.Subscribe(ctx)
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Equal(t, Reachable, recv(t, ch))
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	atomic.StoreInt32(&up, 0)
	clock.Advance(time.Minute)
	assert.Equal(t, Unreachable, recv(t, ch))
	assert.Equal(t, Unreachable, p.Status())

	atomic.StoreInt32(&up, 1)
	clock.Advance(time.Minute)
	assert.Equal(t, Reachable, recv(t, ch))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&dials), int32(3))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&closed), int32(2))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
