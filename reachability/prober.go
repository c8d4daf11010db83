// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package reachability

import (
	"context"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultProbeInterval is the probe interval used when Prober.Interval
// is zero.
const DefaultProbeInterval = 30 * time.Second

// A DialFunc opens a connection, like net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// A Prober is a Monitor that periodically opens a TCP connection to the
// backend and reports whether it succeeded. Subscribers are notified
// only when the outcome changes.
//
// Configure the exported fields and then call Run.
type Prober struct {
	// Address is the host:port to dial.
	Address string
	// Interval between probes. If zero, DefaultProbeInterval is used.
	Interval time.Duration
	// Timeout of each probe. If zero, half the interval is used.
	Timeout time.Duration
	// Clock drives the probe schedule. If nil, the real clock is used.
	Clock clockwork.Clock
	// Dial opens probe connections. If nil, a net.Dialer is used.
	Dial DialFunc
	// Logger receives status changes. If nil, nothing is logged.
	Logger *zerolog.Logger

	status Manual
}

// Subscribe implements Monitor.
func (p *Prober) Subscribe(ctx context.Context) <-chan Status {
	return p.status.Subscribe(ctx)
}

// Status returns the outcome of the most recent probe.
func (p *Prober) Status() Status {
	return p.status.Status()
}

// Run probes immediately and then once per interval until ctx is done,
// at which point it returns ctx.Err().
func (p *Prober) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.probe(ctx, interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (p *Prober) probe(ctx context.Context, interval time.Duration) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = interval / 2
	}
	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	next := Reachable
	conn, err := dial(ctx, "tcp", p.Address)
	if err != nil {
		if ctx.Err() != nil && ctx.Err() != context.DeadlineExceeded {
			return
		}
		next = Unreachable
	} else {
		_ = conn.Close()
	}

	if prev := p.status.Status(); prev != next {
		if p.Logger != nil {
			p.Logger.Info().
				Str("address", p.Address).
				Stringer("from", prev).
				Stringer("to", next).
				AnErr("probe_error", err).
				Msg("reachability changed")
		}
		p.status.Set(next)
	}
}
