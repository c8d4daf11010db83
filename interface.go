// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gogama/httpq/request"
)

// Sender is the interface that wraps the basic Send method.
//
// Send accepts a call to deliver a request plan and reports its
// terminal outcome to a callback exactly once. Client implements the
// Sender interface, and any other Sender implementation must behave
// substantially the same as Client.Send.
type Sender interface {
	Send(p *request.Plan, done Callback) (*Handle, error)
}

// Controller is the interface that wraps the methods controlling
// whether and how a transport dispatches its pending calls.
type Controller interface {
	Pause()
	Resume()
	SetEnabled(enabled bool) error
	SetCompressionEnabled(enabled bool) error
}

// Transport is the interface that groups the Sender and Controller
// interfaces. Client implements Transport.
type Transport interface {
	Sender
	Controller
}

var _ Transport = (*Client)(nil)

// Post uses the specified Sender to queue a POST to the specified URL.
//
// The body parameter may be nil for an empty body, or may be any of the
// types supported by request.NewPlan and request.BodyBytes, namely:
// string; []byte; url.Values; io.Reader; and io.ReadCloser.
//
// To make a request plan with custom headers, use request.NewPlan and
// s.Send.
func Post(s Sender, url, contentType string, body interface{}, done Callback) (*Handle, error) {
	p, err := request.NewPlan("POST", url, body)
	if err != nil {
		return nil, err
	}
	p.Header.Set("Content-Type", contentType)
	return s.Send(p, done)
}

// PostForm uses the specified Sender to queue a POST to the specified
// URL, with data's keys and values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
func PostForm(s Sender, url string, data url.Values, done Callback) (*Handle, error) {
	return Post(s, url, "application/x-www-form-urlencoded", data, done)
}

// SendAndWait sends p using s and blocks until the call reaches its
// terminal outcome. If ctx is done first, the call is cancelled and
// SendAndWait still waits for its outcome, which is then usually
// ErrCancelled.
//
// If s returns a Handle that cannot cancel the call (a nil Handle, or
// one not made by a Client), SendAndWait stops waiting when ctx is done
// and returns ErrCancelled wrapping ctx.Err(). The call itself may
// still complete later.
func SendAndWait(ctx context.Context, s Sender, p *request.Plan) (*request.Call, error) {
	type outcome struct {
		call *request.Call
		err  error
	}
	ch := make(chan outcome, 1)
	h, err := s.Send(p, func(c *request.Call, err error) {
		ch <- outcome{c, err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case o := <-ch:
		return o.call, o.err
	case <-ctx.Done():
		if h == nil || h.c == nil {
			select {
			case o := <-ch:
				return o.call, o.err
			default:
				return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
		}
		h.Cancel()
		o := <-ch
		return o.call, o.err
	}
}
