// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"github.com/gogama/httpq/request"
)

// An Outcome classifies the result of one attempt at delivering a call.
type Outcome int

const (
	// Success means the backend accepted the call. The call completes
	// without error.
	Success Outcome = iota
	// NonRetryable means the attempt failed in a way a retry cannot
	// fix, for example the backend rejected the request as malformed
	// or unauthorized. The call completes with an error immediately.
	NonRetryable
	// Transient means the attempt failed in a way that may clear up,
	// for example a network failure, a server error or a rate-limit
	// signal. The call is retried according to the retry Policy.
	Transient
)

var outcomeNames = []string{
	"Success",
	"NonRetryable",
	"Transient",
}

// String returns the name of the outcome.
func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "Unknown"
	}
	return outcomeNames[o]
}

// A Classifier decides the Outcome of the most recent attempt of a
// call.
//
// Implementations of Classifier must be safe for concurrent use by
// multiple goroutines.
type Classifier interface {
	Classify(c *request.Call) Outcome
}

// The ClassifierFunc type is an adapter to allow the use of ordinary
// functions as classifiers.
type ClassifierFunc func(c *request.Call) Outcome

// Classify returns f(c).
func (f ClassifierFunc) Classify(c *request.Call) Outcome {
	return f(c)
}

// DefaultClassifier is NewClassifier(DefaultDecider).
var DefaultClassifier = NewClassifier(DefaultDecider)

// NewClassifier constructs a classifier which uses d to separate
// transient failures from non-retryable ones.
//
// The constructed classifier reports NonRetryable if the call's plan
// context is done, since the caller has abandoned the call. Otherwise
// it reports Success for an attempt that received a 2XX response
// without error, Transient if d decides the attempt is retryable, and
// NonRetryable in all other cases.
func NewClassifier(d Decider) Classifier {
	if d == nil {
		panic("httpq/retry: nil decider")
	}
	return ClassifierFunc(func(c *request.Call) Outcome {
		if c.Plan != nil && c.Plan.Context().Err() != nil {
			return NonRetryable
		}
		if s := c.StatusCode(); c.Err == nil && s >= 200 && s <= 299 {
			return Success
		}
		if d.Decide(c) {
			return Transient
		}
		return NonRetryable
	})
}
