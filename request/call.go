// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/http"
	"time"

	"github.com/gogama/httpq/transient"
)

// A Call represents the state of one queued Plan from the moment it is
// accepted by the transport until it reaches a terminal outcome.
//
// The transport owns every Call it creates. Retry classifiers, timeout
// policies and event handlers receive the Call while the transport
// holds its internal lock, and should treat the exported fields as
// read-only. The exception is BeforeAttempt handlers, which may make
// reasonable changes to Request before it is sent (for example to add
// a tracing header). Once the completion callback has been invoked the
// Call no longer changes.
type Call struct {
	// ID uniquely identifies the call within the transport. It is
	// assigned when the call is accepted and never changes.
	ID string

	// Plan specifies the logical request being delivered. Credential
	// headers have already been stamped on it. It is never nil.
	Plan *Plan

	// Start is the time the call was accepted by the transport.
	Start time.Time

	// End is the time the call reached its terminal outcome. It is
	// the zero value while the call is pending.
	End time.Time

	// Attempt is the number of attempts that have failed transiently
	// so far. It is zero for the initial attempt, one for the first
	// retry, and so on. A paused or resumed transport does not reset
	// it.
	Attempt int

	// AttemptTimeouts counts attempts that ended because their
	// individual timeout expired.
	AttemptTimeouts int

	// Request is the HTTP request of the current attempt, or of the
	// most recent attempt when no attempt is in flight.
	Request *http.Request

	// Response is the HTTP response received by the most recent
	// attempt. Its body has already been read into Body and closed.
	// It is nil if the most recent attempt ended in a transport error.
	Response *http.Response

	// Body is the fully buffered response body of the most recent
	// attempt.
	Body []byte

	// Err is the error from the most recent attempt while the call is
	// pending. Once the call has ended, Err holds the terminal error
	// passed to the completion callback (nil on success).
	Err error

	// Wait is the backoff delay most recently scheduled after a
	// transient failure.
	Wait time.Duration

	data context.Context
}

// StatusCode returns the status code of the most recent HTTP response,
// or 0 if there is none.
func (c *Call) StatusCode() int {
	if c.Response == nil {
		return 0
	}
	return c.Response.StatusCode
}

// Header returns the headers of the most recent HTTP response, or a
// nil header if there is none.
func (c *Call) Header() http.Header {
	if c.Response == nil {
		return nil
	}
	return c.Response.Header
}

// Ended indicates whether the call has reached its terminal outcome.
func (c *Call) Ended() bool {
	return !c.End.IsZero()
}

// Duration returns how long the call has been (or was) pending, using
// now as the current time for a call that has not ended.
func (c *Call) Duration(now time.Time) time.Duration {
	if c.Start.IsZero() {
		return 0
	}
	if c.Ended() {
		return c.End.Sub(c.Start)
	}
	return now.Sub(c.Start)
}

// Timeout indicates whether Err currently holds a timeout error.
func (c *Call) Timeout() bool {
	return transient.Categorize(c.Err) == transient.Timeout
}

// SetValue lets event handlers attach data to the call. The key must
// follow the rules for context.WithValue keys.
func (c *Call) SetValue(key, value interface{}) {
	ctx := c.data
	if ctx == nil {
		ctx = context.Background()
	}
	c.data = context.WithValue(ctx, key, value)
}

// Value returns the data associated with key, or nil.
func (c *Call) Value(key interface{}) interface{} {
	if c.data == nil {
		return nil
	}
	return c.data.Value(key)
}
