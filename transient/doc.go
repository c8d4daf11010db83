// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transient classifies errors according to whether they are
transient or not, from the perspective of delivering a queued request.

The retry package uses Categorize to decide whether a failed attempt
should be retried, and the metrics package uses it to label failures.
*/
package transient
