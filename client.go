// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gogama/httpq/auth"
	"github.com/gogama/httpq/reachability"
	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/session"
	"github.com/gogama/httpq/timeout"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config configures a Client. Its zero value is a valid configuration.
type Config struct {
	// Session sends individual HTTP requests. If nil, the client
	// creates a session.HTTP from SessionConfig.
	Session session.Session
	// SessionConfig is the template the client uses whenever it
	// recreates the session. The client overrides its Compression field
	// with the client's own compression setting.
	SessionConfig session.Config
	// RetryPolicy decides the backoff after each transient failure and
	// when a call has exhausted its retries. If nil, retry.DefaultPolicy
	// is used.
	RetryPolicy retry.Policy
	// Classifier sorts attempts into Success, NonRetryable and
	// Transient. If nil, retry.DefaultClassifier is used.
	Classifier retry.Classifier
	// TimeoutPolicy sets the timeout of each attempt. If nil,
	// timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// Handlers allows custom handler chains to be invoked when
	// designated events occur during the life of a call.
	Handlers *HandlerGroup
	// Tokens resolves the credential attached to each call. If nil, no
	// Authorization header is attached.
	Tokens *auth.History
	// AppSecret, if not empty, is sent in the App-Secret header of
	// every call.
	AppSecret string
	// Limiter, if not nil, throttles dispatches. A dispatch exceeding
	// the limit is held until the limiter admits it.
	Limiter *rate.Limiter
	// Clock is the timer facility for backoff delays. If nil, the real
	// clock is used.
	Clock clockwork.Clock
	// Logger receives state transitions and retry decisions. If nil,
	// nothing is logged.
	Logger *zerolog.Logger
	// Disabled constructs the client in the Blocked state.
	Disabled bool
	// Compression gzips request bodies.
	Compression bool
}

var emptyHandlers = HandlerGroup{}

// A Client is a queued HTTP transport with retry, pause and enable
// support. It accepts calls without blocking, delivers them through a
// session.Session, and retries transient failures according to its
// retry policy. Every accepted call reaches exactly one terminal
// outcome, reported to its Callback.
//
// A Client is safe for concurrent use by multiple goroutines. All of
// its state is guarded by one lock. Attempts run on their own
// goroutines and re-acquire the lock to record their results.
type Client struct {
	session    session.Session
	sessionCfg session.Config
	retry      retry.Policy
	classifier retry.Classifier
	timeout    timeout.Policy
	handlers   *HandlerGroup
	tokens     *auth.History
	appSecret  string
	limiter    *rate.Limiter
	clock      clockwork.Clock
	log        *zerolog.Logger

	lock        sync.Mutex
	gate        gate
	compression bool
	calls       registry
	seq         uint64
}

// NewClient returns a client configured by cfg. It fails only if the
// default HTTP session cannot be created.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		session:     cfg.Session,
		sessionCfg:  cfg.SessionConfig,
		retry:       cfg.RetryPolicy,
		classifier:  cfg.Classifier,
		timeout:     cfg.TimeoutPolicy,
		handlers:    cfg.Handlers,
		tokens:      cfg.Tokens,
		appSecret:   cfg.AppSecret,
		limiter:     cfg.Limiter,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		gate:        newGate(cfg.Disabled),
		compression: cfg.Compression,
		calls:       make(registry),
	}
	if c.retry == nil {
		c.retry = retry.DefaultPolicy
	}
	if c.classifier == nil {
		c.classifier = retry.DefaultClassifier
	}
	if c.timeout == nil {
		c.timeout = timeout.DefaultPolicy
	}
	if c.handlers == nil {
		c.handlers = &emptyHandlers
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.log == nil {
		nop := zerolog.Nop()
		c.log = &nop
	}
	if c.session == nil {
		s, err := session.NewHTTP(c.sessionConfigLocked())
		if err != nil {
			return nil, err
		}
		c.session = s
	}
	return c, nil
}

// A Handle refers to a call accepted by Send.
type Handle struct {
	c  *Client
	id string
}

// ID returns the call's unique identifier.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Cancel cancels the call. See Client.Cancel.
//
// A nil Handle, or one not returned by a Client, cancels nothing and
// returns false.
func (h *Handle) Cancel() bool {
	if h == nil || h.c == nil {
		return false
	}
	return h.c.Cancel(h.id)
}

// Send accepts a call to deliver p, and returns without waiting for
// the network. The outcome is reported to done exactly once.
//
// If the client is disabled, Send returns ErrDisabled, does not
// register the call and never invokes done.
//
// The client delivers its own copy of p with credential headers
// stamped on it. The Authorization header carries the token from the
// client's token history that applied at p.Time, or at the current time
// if p.Time is zero. Cancelling p's context cancels the call.
func (c *Client) Send(p *request.Plan, done Callback) (*Handle, error) {
	if p == nil {
		panic("httpq: nil plan")
	}
	if done == nil {
		panic("httpq: nil callback")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.gate.state == Blocked {
		return nil, ErrDisabled
	}

	now := c.clock.Now()
	call := &request.Call{
		ID:    uuid.NewString(),
		Plan:  c.stamp(p, now),
		Start: now,
	}
	c.seq++
	pc := &pendingCall{call: call, done: done, seq: c.seq}
	c.calls[call.ID] = pc
	ctx := call.Plan.Context()
	pc.stopWatch = context.AfterFunc(ctx, func() {
		c.cancel(call.ID, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
	})
	c.handlers.run(AfterEnqueue, call)
	c.log.Debug().
		Str("call_id", call.ID).
		Str("url", call.Plan.URL.String()).
		Stringer("state", c.gate.state).
		Msg("call enqueued")

	c.dispatchLocked(pc, now)
	return &Handle{c: c, id: call.ID}, nil
}

// Cancel cancels the pending call with the given ID, completing it
// with ErrCancelled. An attempt in flight is aborted and its result is
// discarded. Cancel returns false if no such call is pending.
func (c *Client) Cancel(id string) bool {
	return c.cancel(id, ErrCancelled)
}

func (c *Client) cancel(id string, err error) bool {
	c.lock.Lock()
	pc, ok := c.calls[id]
	if !ok {
		c.lock.Unlock()
		return false
	}
	pc.cancelled = true
	notify := c.finishLocked(pc, err)
	c.lock.Unlock()

	notify()
	return true
}

// Pause stops dispatching. Pending calls stay registered and attempts
// already in flight are not interrupted. Backoff delays keep running
// against each call's due time, but their timers are stopped.
//
// Pausing a disabled client makes it return to the Suspended state
// when it is enabled.
func (c *Client) Pause() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.gate.pause() {
		return
	}
	for _, pc := range c.calls {
		c.stopTimerLocked(pc)
	}
	c.log.Info().Int("pending", len(c.calls)).Msg("client paused")
}

// Resume restarts dispatching. Every pending call whose backoff has
// elapsed is dispatched immediately, and timers are armed for the rest.
// Attempt counts are not reset.
//
// Resuming a disabled client makes it return to the Active state when
// it is enabled.
func (c *Client) Resume() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.gate.resume() {
		return
	}
	c.log.Info().Int("pending", len(c.calls)).Msg("client resumed")
	now := c.clock.Now()
	for _, pc := range c.calls.sorted() {
		c.dispatchLocked(pc, now)
	}
}

// SetEnabled enables or disables the client.
//
// Disabling cancels every pending call with ErrDisabled, invoking each
// callback exactly once before SetEnabled returns, and invalidates the
// session.
//
// Enabling recreates the session with fresh connection state and
// returns the client to Active, or to Suspended if it was paused. The
// returned error reports a failure to recreate the session. The client
// is enabled regardless.
func (c *Client) SetEnabled(enabled bool) error {
	if enabled {
		c.lock.Lock()
		defer c.lock.Unlock()

		if !c.gate.enable() {
			return nil
		}
		c.log.Info().Stringer("state", c.gate.state).Msg("client enabled")
		return c.recreateLocked()
	}

	c.lock.Lock()
	if !c.gate.disable() {
		c.lock.Unlock()
		return nil
	}
	pcs := c.calls.sorted()
	notify := make([]func(), len(pcs))
	for i, pc := range pcs {
		pc.cancelled = true
		notify[i] = c.finishLocked(pc, ErrDisabled)
	}
	c.session.Invalidate()
	c.log.Info().Int("cancelled", len(pcs)).Msg("client disabled")
	c.lock.Unlock()

	for _, f := range notify {
		f()
	}
	return nil
}

// SetCompressionEnabled changes whether request bodies are gzipped.
// Unless the client is disabled, the session is recreated at once, so
// attempts already in flight are unaffected and later attempts use the
// new setting. A disabled client applies the setting when enabled.
func (c *Client) SetCompressionEnabled(enabled bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.compression == enabled {
		return nil
	}
	c.compression = enabled
	if c.gate.state == Blocked {
		return nil
	}
	return c.recreateLocked()
}

// State returns the current dispatch state.
func (c *Client) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.gate.state
}

// Pending returns the number of calls that have not reached a terminal
// outcome.
func (c *Client) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.calls)
}

// CompressionEnabled indicates whether request bodies are gzipped.
func (c *Client) CompressionEnabled() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.compression
}

// Watch pauses the client whenever m reports the backend unreachable
// and resumes it whenever m reports the backend reachable. Watch blocks
// until ctx is done and then returns ctx.Err().
func (c *Client) Watch(ctx context.Context, m reachability.Monitor) error {
	for s := range m.Subscribe(ctx) {
		c.log.Debug().Stringer("status", s).Msg("reachability changed")
		switch s {
		case reachability.Unreachable:
			c.Pause()
		case reachability.Reachable:
			c.Resume()
		}
	}
	return ctx.Err()
}

func (c *Client) stamp(p *request.Plan, now time.Time) *request.Plan {
	p = p.Clone()
	at := p.Time
	if at.IsZero() {
		at = now
	}
	if c.tokens != nil {
		if tok, ok := c.tokens.Applicable(at); ok {
			if secret, ok := tok.AuthToken(); ok && secret != "" {
				p.Header.Set("Authorization", "Bearer "+secret)
			}
		}
	}
	if c.appSecret != "" {
		p.Header.Set("App-Secret", c.appSecret)
	}
	return p
}

// dispatchLocked starts an attempt of pc if the client is active and
// the call is due. A call that is not yet due gets a timer instead.
func (c *Client) dispatchLocked(pc *pendingCall, now time.Time) {
	if c.gate.state != Active || pc.inflight || pc.cancelled {
		return
	}
	if pc.due.After(now) {
		c.scheduleLocked(pc, pc.due.Sub(now))
		return
	}
	if c.limiter != nil && pc.reservation == nil {
		r := c.limiter.ReserveN(now, 1)
		if d := r.DelayFrom(now); r.OK() && d > 0 {
			pc.reservation = r
			pc.due = now.Add(d)
			c.scheduleLocked(pc, d)
			c.log.Debug().Str("call_id", pc.call.ID).Dur("delay", d).Msg("dispatch throttled")
			return
		}
	}
	c.stopTimerLocked(pc)
	pc.reservation = nil
	pc.due = time.Time{}

	call := pc.call
	ctx, cancel := context.WithTimeout(call.Plan.Context(), c.timeout.Timeout(call))
	call.Request = call.Plan.ToRequest(ctx)
	call.Response = nil
	call.Body = nil
	call.Err = nil
	c.handlers.run(BeforeAttempt, call)

	pc.inflight = true
	pc.abort = cancel
	pc.attemptSeq++
	go c.attempt(pc, pc.attemptSeq, call.Request)
}

func (c *Client) attempt(pc *pendingCall, seq uint64, r *http.Request) {
	resp, err := c.session.Do(r)
	var body []byte
	if err == nil {
		body, err = readBody(resp)
	}
	c.complete(pc, seq, resp, body, err)
}

func (c *Client) complete(pc *pendingCall, seq uint64, resp *http.Response, body []byte, err error) {
	c.lock.Lock()
	if !c.calls.has(pc) || !pc.inflight || pc.attemptSeq != seq {
		c.lock.Unlock()
		return
	}
	pc.inflight = false
	pc.abort()
	pc.abort = nil

	call := pc.call
	call.Response = resp
	call.Body = body
	if err != nil {
		call.Err = urlErrorWrap(call.Plan, err)
	}
	if call.Timeout() {
		call.AttemptTimeouts++
		c.handlers.run(AfterAttemptTimeout, call)
	}
	c.handlers.run(AfterAttempt, call)

	var notify func()
	if ctxErr := call.Plan.Context().Err(); ctxErr != nil {
		notify = c.finishLocked(pc, fmt.Errorf("%w: %w", ErrCancelled, ctxErr))
	} else {
		switch c.classifier.Classify(call) {
		case retry.Success:
			notify = c.finishLocked(pc, nil)
		case retry.Transient:
			notify = c.retryLocked(pc)
		default:
			notify = c.finishLocked(pc, fmt.Errorf("%w: %w", ErrNonRetryable, attemptErr(call)))
		}
	}
	c.lock.Unlock()

	if notify != nil {
		notify()
	}
}

// retryLocked records a transient failure of pc and either schedules
// the next attempt or completes the call as exhausted.
func (c *Client) retryLocked(pc *pendingCall) func() {
	call := pc.call
	call.Attempt++
	if c.retry.Exhausted(call.Attempt) {
		c.log.Warn().
			Str("call_id", call.ID).
			Int("attempts", call.Attempt).
			Err(attemptErr(call)).
			Msg("retries exhausted")
		return c.finishLocked(pc, &ExhaustedError{Attempts: call.Attempt, Last: attemptErr(call)})
	}

	d := c.retry.Delay(call.Attempt)
	call.Wait = d
	pc.due = c.clock.Now().Add(d)
	c.handlers.run(AfterRetryScheduled, call)
	c.log.Debug().
		Str("call_id", call.ID).
		Int("attempt", call.Attempt).
		Dur("wait", d).
		Err(attemptErr(call)).
		Msg("retry scheduled")
	if c.gate.state == Active {
		c.scheduleLocked(pc, d)
	}
	return nil
}

func (c *Client) scheduleLocked(pc *pendingCall, d time.Duration) {
	c.stopTimerLocked(pc)
	seq := pc.timerSeq
	pc.timer = c.clock.AfterFunc(d, func() {
		c.fire(pc, seq)
	})
}

func (c *Client) fire(pc *pendingCall, seq uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.calls.has(pc) || pc.timerSeq != seq || pc.timer == nil {
		return
	}
	pc.timer = nil
	pc.due = time.Time{}
	c.dispatchLocked(pc, c.clock.Now())
}

// stopTimerLocked stops pc's timer and invalidates any firing of it
// that is already waiting for the lock.
func (c *Client) stopTimerLocked(pc *pendingCall) {
	if pc.timer != nil {
		pc.timer.Stop()
		pc.timer = nil
	}
	pc.timerSeq++
}

// finishLocked removes pc from the registry and releases everything it
// holds. It returns the callback invocation, which the caller must run
// after releasing the lock.
func (c *Client) finishLocked(pc *pendingCall, err error) func() {
	now := c.clock.Now()
	delete(c.calls, pc.call.ID)
	c.stopTimerLocked(pc)
	if pc.abort != nil {
		pc.abort()
		pc.abort = nil
	}
	pc.inflight = false
	if pc.reservation != nil {
		pc.reservation.CancelAt(now)
		pc.reservation = nil
	}
	if pc.stopWatch != nil {
		pc.stopWatch()
	}

	call := pc.call
	call.End = now
	call.Err = err
	c.handlers.run(AfterCallEnd, call)
	c.log.Debug().
		Str("call_id", call.ID).
		Int("attempt", call.Attempt).
		Dur("duration", call.Duration(now)).
		AnErr("error", err).
		Msg("call ended")

	done := pc.done
	return func() {
		done(call, err)
	}
}

func (c *Client) recreateLocked() error {
	err := c.session.InvalidateAndRecreate(c.sessionConfigLocked())
	if err != nil {
		c.log.Error().Err(err).Msg("failed to recreate session")
	}
	return err
}

func (c *Client) sessionConfigLocked() session.Config {
	cfg := c.sessionCfg
	cfg.Compression = c.compression
	return cfg
}

func readBody(resp *http.Response) ([]byte, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	return io.ReadAll(resp.Body)
}

// attemptErr describes the failure of the most recent attempt.
func attemptErr(call *request.Call) error {
	if call.Err != nil {
		return call.Err
	}
	if call.Response != nil {
		return &StatusError{StatusCode: call.Response.StatusCode, Body: call.Body}
	}
	return errors.New("httpq: attempt produced neither response nor error")
}

func urlErrorWrap(p *request.Plan, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	return &url.Error{
		Op:  urlErrorOp(p.Method),
		URL: p.URL.String(),
		Err: err,
	}
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
