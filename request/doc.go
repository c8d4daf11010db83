// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request contains the core types Plan (describes a request to be
delivered) and Call (describes the delivery of a Plan by the queued
transport).

A Plan looks like a stripped-down http.Request with a pre-buffered body,
because a queued request may be attempted several times over a long
period. Create a plan and hand it to the transport:

	p, err := request.NewPlan("POST", "https://in.example.com/logs", payload)
	...
	h, err := client.Send(p, func(c *request.Call, err error) {
		...
	})

A Call is created by the transport when it accepts a Plan. It records
the attempt count, the most recent request and response, and finally
the terminal outcome. Retry classifiers, timeout policies and event
handlers all receive the Call.
*/
package request
