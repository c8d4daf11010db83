// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry decides whether a failed delivery attempt is retried,
// and how long the transport waits before retrying it.
//
// A Classifier sorts each attempt into Success, NonRetryable or
// Transient. The built-in classifier is assembled from composable
// deciders:
//
//	c := retry.NewClassifier(retry.StatusCode(429).
//		Or(retry.ServerError).
//		Or(retry.TransientErr))
//
// A Policy maps the number of transient failures to a backoff delay and
// marks the point where retries are exhausted. Most policies are a
// plain sequence of delays, optionally jittered:
//
//	p := retry.WithJitter(retry.Intervals(time.Second, 2*time.Second, 4*time.Second), time.Now())
package retry
