// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package metrics exports Prometheus metrics describing the calls of a
// queued transport.
package metrics

import (
	"errors"

	"github.com/gogama/httpq"
	"github.com/gogama/httpq/request"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "httpq"

// Results reported in the result label of calls_completed_total.
const (
	ResultSuccess      = "success"
	ResultNonRetryable = "non_retryable"
	ResultExhausted    = "exhausted"
	ResultCancelled    = "cancelled"
	ResultDisabled     = "disabled"
	ResultOther        = "other"
)

// A Collector counts call lifecycle events. Install it into the
// handler group of one or more clients.
type Collector struct {
	enqueued        prometheus.Counter
	attempts        prometheus.Counter
	attemptTimeouts prometheus.Counter
	retries         prometheus.Counter
	completed       *prometheus.CounterVec
	retryWait       prometheus.Histogram
	callDuration    prometheus.Histogram
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_enqueued_total",
			Help:      "Total number of calls accepted by Send",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of attempts dispatched",
		}),
		attemptTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_timeouts_total",
			Help:      "Total number of attempts that timed out",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_scheduled_total",
			Help:      "Total number of retries scheduled after a transient failure",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_completed_total",
			Help:      "Total number of calls that reached a terminal outcome",
		}, []string{"result"}),
		retryWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_wait_seconds",
			Help:      "Backoff delay scheduled before each retry",
			Buckets:   []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time from acceptance of a call to its terminal outcome",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
		}),
	}
	for _, m := range []prometheus.Collector{
		c.enqueued, c.attempts, c.attemptTimeouts, c.retries,
		c.completed, c.retryWait, c.callDuration,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Install adds the collector's handlers to g.
func (c *Collector) Install(g *httpq.HandlerGroup) {
	g.PushBack(httpq.AfterEnqueue, httpq.HandlerFunc(func(httpq.Event, *request.Call) {
		c.enqueued.Inc()
	}))
	g.PushBack(httpq.BeforeAttempt, httpq.HandlerFunc(func(httpq.Event, *request.Call) {
		c.attempts.Inc()
	}))
	g.PushBack(httpq.AfterAttemptTimeout, httpq.HandlerFunc(func(httpq.Event, *request.Call) {
		c.attemptTimeouts.Inc()
	}))
	g.PushBack(httpq.AfterRetryScheduled, httpq.HandlerFunc(func(_ httpq.Event, call *request.Call) {
		c.retries.Inc()
		c.retryWait.Observe(call.Wait.Seconds())
	}))
	g.PushBack(httpq.AfterCallEnd, httpq.HandlerFunc(func(_ httpq.Event, call *request.Call) {
		c.completed.WithLabelValues(Result(call.Err)).Inc()
		c.callDuration.Observe(call.End.Sub(call.Start).Seconds())
	}))
}

// Result classifies the terminal error of a call into one of the
// Result constants.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, httpq.ErrNonRetryable):
		return ResultNonRetryable
	case errors.Is(err, httpq.ErrRetriesExhausted):
		return ResultExhausted
	case errors.Is(err, httpq.ErrCancelled):
		return ResultCancelled
	case errors.Is(err, httpq.ErrDisabled):
		return ResultDisabled
	default:
		return ResultOther
	}
}
