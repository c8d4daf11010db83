// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package session provides the connection-level primitive used by the
// queued transport to send individual HTTP requests.
//
// The HTTP session owns a standard library transport, optionally
// configured for HTTP/2 with health check pings, and optionally gzips
// request bodies. Its connection state can be dropped with Invalidate
// and rebuilt with InvalidateAndRecreate, which the transport does when
// it is re-enabled or its compression setting changes.
package session
