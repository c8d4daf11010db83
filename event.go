// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Client to extend it with custom
// functionality, such as metrics.
//
// Handlers run while the Client holds its internal lock. They must
// return promptly and must not call methods of the Client.
type Event int

const (
	// AfterEnqueue identifies the event that occurs after a call has
	// been accepted and registered, before its first attempt.
	//
	// When Client fires AfterEnqueue, the call's ID, Plan and Start
	// fields are set. Credential headers have already been stamped on
	// the plan.
	AfterEnqueue Event = iota
	// BeforeAttempt identifies the event that occurs before each
	// individual attempt to deliver a call.
	//
	// When Client fires BeforeAttempt, the call's request field is set
	// to the HTTP request that WILL BE sent after all BeforeAttempt
	// handlers have finished. Handlers may modify the request, but
	// should clone reference-typed fields (URL and Header) first.
	BeforeAttempt
	// AfterAttemptTimeout identifies the event that occurs after an
	// attempt failed because its individual timeout expired.
	//
	// When Client fires AfterAttemptTimeout, the call's error field is
	// set to the timeout error, and its attempt timeout counter has
	// been incremented.
	AfterAttemptTimeout
	// AfterAttempt identifies the event that occurs after an attempt
	// concludes, regardless of whether it succeeded.
	//
	// When Client fires AfterAttempt, the call's response field or its
	// error field or both are set. AfterAttempt runs before the attempt
	// is classified. It does not fire for attempts whose call was
	// cancelled or disabled while the attempt was in flight.
	AfterAttempt
	// AfterRetryScheduled identifies the event that occurs after a
	// transient failure, once the backoff before the next attempt has
	// been chosen.
	//
	// When Client fires AfterRetryScheduled, the call's attempt counter
	// has been incremented and its wait field holds the backoff delay.
	// If the client is paused, the delay keeps running against the
	// call's due time but no timer is armed until the client resumes.
	AfterRetryScheduled
	// AfterCallEnd identifies the event that occurs once a call reaches
	// its terminal outcome, just before its callback is invoked.
	//
	// When Client fires AfterCallEnd, the call's end time is set and its
	// error field holds the terminal error, or nil on success.
	AfterCallEnd
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"AfterEnqueue",
	"BeforeAttempt",
	"AfterAttemptTimeout",
	"AfterAttempt",
	"AfterRetryScheduled",
	"AfterCallEnd",
}

// Events returns a slice containing all events which can occur during
// the life of a call, in the order in which they would occur.
func Events() []Event {
	return []Event{
		AfterEnqueue,
		BeforeAttempt,
		AfterAttemptTimeout,
		AfterAttempt,
		AfterRetryScheduled,
		AfterCallEnd,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
