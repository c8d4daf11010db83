// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies for setting the timeout of each
// delivery attempt of a queued call, including retries. A generic
// interface for timeout policies is provided, Policy, along with
// several policy constructors and built-in policies.
package timeout
