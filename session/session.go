// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/http2"
)

// ErrInvalidated is returned by HTTP.Do after the session has been
// invalidated and before it has been recreated.
var ErrInvalidated = errors.New("httpq/session: session invalidated")

// A Session is the low-level primitive that sends one HTTP request and
// receives its response. The queued transport (httpq.Client) builds on
// top of a Session, and recreates it whenever the transport is
// re-enabled or the compression setting changes.
//
// Implementations of Session must be safe for concurrent use by
// multiple goroutines.
type Session interface {
	// Do sends an HTTP request and returns an HTTP response, following
	// the contract of Do on the standard library http.Client.
	Do(r *http.Request) (*http.Response, error)
	// Invalidate drops the session's connection state. Requests
	// already in flight run to completion. Until the session is
	// recreated, Do fails.
	Invalidate()
	// InvalidateAndRecreate replaces the session's connection state
	// with fresh state built from cfg.
	InvalidateAndRecreate(cfg Config) error
}

// Config configures the connection state of an HTTP session.
type Config struct {
	// Compression gzips non-empty request bodies.
	Compression bool
	// HTTP2 enables HTTP/2 over TLS.
	HTTP2 bool
	// PingInterval is how long an HTTP/2 connection may be idle for
	// reads before a health check ping is sent. Zero disables pings.
	PingInterval time.Duration
	// MaxIdleConns limits idle keep-alive connections. Zero means no
	// limit.
	MaxIdleConns int
	// TLSClientConfig is the TLS configuration for new connections.
	// If nil, the default configuration is used.
	TLSClientConfig *tls.Config
}

// An HTTP is a Session backed by a standard library http.Transport.
type HTTP struct {
	lock      sync.RWMutex
	cfg       Config
	transport *http.Transport
	client    *http.Client
}

// NewHTTP returns an HTTP session with connection state built from
// cfg.
func NewHTTP(cfg Config) (*HTTP, error) {
	s := &HTTP{}
	if err := s.InvalidateAndRecreate(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the configuration of the current connection state.
func (s *HTTP) Config() Config {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.cfg
}

func (s *HTTP) Do(r *http.Request) (*http.Response, error) {
	s.lock.RLock()
	client, cfg := s.client, s.cfg
	s.lock.RUnlock()

	if client == nil {
		return nil, ErrInvalidated
	}
	if cfg.Compression {
		var err error
		if r, err = compress(r); err != nil {
			return nil, err
		}
	}
	return client.Do(r)
}

func (s *HTTP) Invalidate() {
	s.lock.Lock()
	t := s.transport
	s.transport, s.client = nil, nil
	s.lock.Unlock()

	if t != nil {
		t.CloseIdleConnections()
	}
}

func (s *HTTP) InvalidateAndRecreate(cfg Config) error {
	t, err := newTransport(cfg)
	if err != nil {
		return err
	}

	s.lock.Lock()
	old := s.transport
	s.cfg = cfg
	s.transport = t
	s.client = &http.Client{Transport: t}
	s.lock.Unlock()

	if old != nil {
		old.CloseIdleConnections()
	}
	return nil
}

func newTransport(cfg Config) (*http.Transport, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.MaxIdleConns
	if cfg.TLSClientConfig != nil {
		t.TLSClientConfig = cfg.TLSClientConfig.Clone()
	}
	if !cfg.HTTP2 {
		t.ForceAttemptHTTP2 = false
		t.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
		return t, nil
	}
	h2, err := http2.ConfigureTransports(t)
	if err != nil {
		return nil, err
	}
	if cfg.PingInterval > 0 {
		h2.ReadIdleTimeout = cfg.PingInterval
		h2.PingTimeout = cfg.PingInterval / 2
	}
	return t, nil
}

// compress returns a copy of r with a gzipped body. Requests without a
// body, or whose body is already encoded, are returned unchanged.
func compress(r *http.Request) (*http.Request, error) {
	if r.Body == nil || r.Body == http.NoBody || r.Header.Get("Content-Encoding") != "" {
		return r, nil
	}
	body := r.Body
	if r.GetBody != nil {
		var err error
		if body, err = r.GetBody(); err != nil {
			return nil, err
		}
		_ = r.Body.Close()
	}
	defer body.Close()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := io.Copy(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	b := buf.Bytes()

	r2 := r.Clone(r.Context())
	r2.Header.Set("Content-Encoding", "gzip")
	r2.Body = io.NopCloser(bytes.NewReader(b))
	r2.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	r2.ContentLength = int64(len(b))
	return r2, nil
}
