// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"context"
	"errors"

	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/transient"
)

// A Decider decides whether the most recent attempt of a call failed
// in a way that is worth retrying.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructor StatusCode and the built-in deciders
// ServerError, TransientErr and NetworkErr, or implement your own. Use
// DeciderFunc to convert an ordinary function into a Decider, and to
// compose deciders logically using DeciderFunc.And and DeciderFunc.Or.
type Decider interface {
	Decide(c *request.Call) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
type DeciderFunc func(c *request.Call) bool

// DefaultDecider treats an attempt as retryable if it failed with a
// network error (NetworkErr), a server error (ServerError), or one of
// the status codes 408 (Request Timeout) and 429 (Too Many Requests).
var DefaultDecider = StatusCode(408, 429).Or(ServerError).Or(NetworkErr)

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
var TransientErr DeciderFunc = transientErr

// NetworkErr is a decider that indicates a retry for any transport
// error, transient or not, unless the call's own plan context has been
// cancelled. Telemetry backends sit behind flaky networks, so any
// failure to speak HTTP is worth another try.
var NetworkErr DeciderFunc = networkErr

// ServerError is a decider that indicates a retry if the most recent
// attempt received a 5XX status code.
var ServerError DeciderFunc = serverError

// Decide returns true if a retry should be done, and false otherwise.
func (f DeciderFunc) Decide(c *request.Call) bool {
	return f(c)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(c *request.Call) bool {
		return f(c) && g(c)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(c *request.Call) bool {
		return f(c) || g(c)
	}
}

// StatusCode constructs a retry decider allowing retries based on the
// HTTP response status code of the most recent attempt.
func StatusCode(ss ...int) DeciderFunc {
	ss2 := make([]int, len(ss))
	copy(ss2, ss)
	return func(c *request.Call) bool {
		for _, s := range ss2 {
			if c.StatusCode() == s {
				return true
			}
		}
		return false
	}
}

func transientErr(c *request.Call) bool {
	return transient.Categorize(c.Err) != transient.Not
}

func networkErr(c *request.Call) bool {
	return c.Err != nil && !errors.Is(c.Err, context.Canceled)
}

func serverError(c *request.Call) bool {
	s := c.StatusCode()
	return s >= 500 && s <= 599
}
