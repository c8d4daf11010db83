// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package httpq provides a queued, authenticated HTTP transport for
delivering payloads to a backend that may be slow, flaky or temporarily
out of reach.

Create a Client and send request plans to it. Send never blocks on the
network: the call is registered, dispatched when the client is able to,
retried on transient failure, and its terminal outcome is reported to a
callback exactly once.

	client, err := httpq.NewClient(httpq.Config{})
	...
	plan, err := request.NewPlan("POST", "https://logs.example.com/v1/batch", &buf)
	...
	h, err := client.Send(plan, func(c *request.Call, err error) {
		if err != nil {
			log.Printf("call %s failed after %d attempts: %v", c.ID, c.Attempt+1, err)
		}
	})

Transient failures (network errors, 408, 429 and 5xx responses) are
retried after the delays of the client's retry policy, which defaults to
10 seconds, 5 minutes and 20 minutes. For control over the retry decisions and timing, use
components from package retry:

	client, err := httpq.NewClient(httpq.Config{
		RetryPolicy: retry.WithJitter(retry.Intervals(time.Second, 10*time.Second), time.Now()),
		Classifier:  retry.NewClassifier(retry.StatusCode(409).Or(retry.DefaultDecider)),
	})

A client can be paused and resumed. While paused it accepts calls but
dispatches none of them. Use Watch to pause and resume it automatically
as a reachability.Monitor reports the backend going away and coming
back:

	p := &reachability.Prober{Address: "logs.example.com:443"}
	go p.Run(ctx)
	go client.Watch(ctx, p)

Disabling a client cancels every pending call with ErrDisabled and
refuses new ones until it is enabled again. Enabling, and changing the
compression setting, recreate the underlying session.Session.

To authenticate calls, give the client an auth.History. Each call
carries the bearer token that applied when its payload was produced
(request.Plan.Time), so payloads produced before a token rotation are
still delivered under the token they belong to.

To hook into the life of each call, install a handler into the
appropriate handler chain:

	handlers := &httpq.HandlerGroup{}
	handlers.PushBack(httpq.AfterRetryScheduled, httpq.HandlerFunc(
		func(_ httpq.Event, c *request.Call) {
			log.Printf("retrying %s in %s", c.ID, c.Wait)
		}),
	)
	client, err := httpq.NewClient(httpq.Config{Handlers: handlers})

Package httpq provides basic interfaces for the client's methods
(Sender, Controller and Transport) and utility functions for working
with a Sender (Post, PostForm and SendAndWait).
*/
package httpq
