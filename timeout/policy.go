// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/httpq/request"
)

// A Policy decides the timeout of each individual delivery attempt made
// by the transport (httpq.Client). The timeout of an attempt is
// independent of the backoff delay between attempts.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the next attempt of the
	// call.
	//
	// Parameter c contains the current state of the call, including
	// the error of the previous attempt, if any.
	Timeout(c *request.Call) time.Duration
}

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 30 seconds on each attempt.
var DefaultPolicy Policy = Fixed(30 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value to set
// every attempt timeout.
func Fixed(d time.Duration) Policy {
	return policy([]time.Duration{d})
}

// Adaptive constructs a timeout policy that varies the next timeout
// value if the previous attempt timed out.
//
// Parameter usual is the timeout for an initial attempt and for any
// retry whose preceding attempt did not time out.
//
// Parameter after contains the timeouts used when the previous attempt
// timed out. The first timeout of the call selects after[0], the second
// after[1], and so on. Once more attempts have timed out than after has
// elements, the last element of after is used.
//
// For example, the policy
//
//	p := Adaptive(5*time.Second, 15*time.Second, time.Minute)
//
// uses 5 seconds usually, 15 seconds after the first timeout, and one
// minute after any later timeout.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	p := make([]time.Duration, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []time.Duration

func (p policy) Timeout(c *request.Call) time.Duration {
	if !c.Timeout() {
		return p[0]
	}

	i := c.AttemptTimeouts
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}
