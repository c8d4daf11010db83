// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package reachability publishes the connectivity of the network path
// to the backend. The queued transport subscribes to a Monitor and
// pauses while the backend is unreachable.
package reachability
