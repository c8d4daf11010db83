// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"sync"
	"time"
)

// A Policy maps the number of transient failures a call has suffered
// to the backoff delay before its next attempt, and decides when the
// call has exhausted its retries.
//
// Attempt numbers passed to a Policy are one-based: after the first
// transient failure the transport asks for Delay(1), after the second
// Delay(2), and so on. The transport consults Exhausted before Delay,
// and never asks for the delay of an exhausted attempt.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Delay(attempt int) time.Duration
	Exhausted(attempt int) bool
}

// DefaultIntervals are the backoff delays used by DefaultPolicy.
var DefaultIntervals = []time.Duration{
	10 * time.Second,
	5 * time.Minute,
	20 * time.Minute,
}

// DefaultPolicy retries a call up to three times, waiting 10 seconds,
// 5 minutes and then 20 minutes between attempts.
var DefaultPolicy = Intervals(DefaultIntervals...)

// Never is a policy under which the first transient failure exhausts
// the call.
var Never = Intervals()

// Intervals constructs a policy from an ordered sequence of backoff
// delays. After attempt a fails transiently the delay is ds[a-1], or
// the last element of ds once a exceeds its length. A call is exhausted
// once a exceeds len(ds).
//
// Intervals panics if any delay is negative.
func Intervals(ds ...time.Duration) Policy {
	p := make(intervals, len(ds))
	for i, d := range ds {
		if d < 0 {
			panic("httpq/retry: negative interval")
		}
		p[i] = d
	}
	return p
}

type intervals []time.Duration

func (p intervals) Delay(attempt int) time.Duration {
	if len(p) == 0 {
		return 0
	}
	i := attempt - 1
	if i < 0 {
		i = 0
	} else if i > len(p)-1 {
		i = len(p) - 1
	}
	return p[i]
}

func (p intervals) Exhausted(attempt int) bool {
	return attempt > len(p)
}

// WithJitter wraps a policy so that each delay d it returns is replaced
// by a random delay in the range [d/2, d]. Exhaustion is unchanged.
//
// Parameter jitter seeds the random number generator. It may be a
// time.Time, int, or int64 seed, a rand.Source, or a *rand.Rand.
func WithJitter(p Policy, jitter interface{}) Policy {
	if p == nil {
		panic("httpq/retry: nil policy")
	}
	return &jitterPolicy{
		Policy: p,
		rand:   jitterToRand(jitter),
	}
}

type jitterPolicy struct {
	Policy
	rand *rand.Rand
	lock sync.Mutex
}

func (p *jitterPolicy) Delay(attempt int) time.Duration {
	d := p.Policy.Delay(attempt)
	half := d / 2
	if half <= 0 {
		return d
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return half + time.Duration(p.rand.Int63n(int64(d-half)+1))
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("httpq/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("httpq/retry: invalid jitter type")
	}
	return rand.New(s)
}
