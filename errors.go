// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDisabled is returned by Send while the client is disabled, and
	// is the terminal error of every call pending when the client is
	// disabled.
	ErrDisabled = errors.New("httpq: client disabled")
	// ErrCancelled is the terminal error of a cancelled call.
	ErrCancelled = errors.New("httpq: call cancelled")
	// ErrNonRetryable is wrapped by the terminal error of a call whose
	// attempt failed in a way a retry cannot fix.
	ErrNonRetryable = errors.New("httpq: non-retryable failure")
	// ErrRetriesExhausted matches, via errors.Is, the terminal error of
	// a call that used up its retry policy.
	ErrRetriesExhausted = errors.New("httpq: retries exhausted")
)

// A StatusError reports an attempt that received a response with an
// unsuccessful status code.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpq: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// An ExhaustedError is the terminal error of a call that failed
// transiently on every attempt its retry policy allowed.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int
	// Last is the failure of the final attempt. It is either a
	// *StatusError or a *url.Error.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("httpq: retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the failure of the final attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is reports whether target is ErrRetriesExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}
