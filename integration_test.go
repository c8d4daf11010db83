// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogama/httpq/auth"
	"github.com/gogama/httpq/request"
	"github.com/gogama/httpq/retry"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	auth     string
	secret   string
	encoding string
	body     string
}

// flakyBackend answers the first n requests with 503 and the rest with
// 200, recording what it receives.
type flakyBackend struct {
	failFirst int32
	count     int32

	lock sync.Mutex
	got  []received
}

func (b *flakyBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rd io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer zr.Close()
		rd = zr
	}
	body, _ := io.ReadAll(rd)

	b.lock.Lock()
	b.got = append(b.got, received{
		auth:     r.Header.Get("Authorization"),
		secret:   r.Header.Get("App-Secret"),
		encoding: r.Header.Get("Content-Encoding"),
		body:     string(body),
	})
	b.lock.Unlock()

	if atomic.AddInt32(&b.count, 1) <= b.failFirst {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("try later"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (b *flakyBackend) received() []received {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]received(nil), b.got...)
}

func TestClient_HTTPSession(t *testing.T) {
	t0 := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	old, err := auth.NewTokenInfo(auth.WithAuthToken("old"), auth.WithExpiresOn(t0))
	require.NoError(t, err)
	cur, err := auth.NewTokenInfo(auth.WithAuthToken("cur"), auth.WithStartTime(t0))
	require.NoError(t, err)
	tokens, err := auth.NewHistory(old, cur)
	require.NoError(t, err)

	t.Run("retry then success", func(t *testing.T) {
		backend := &flakyBackend{failFirst: 2}
		server := httptest.NewServer(backend)
		defer server.Close()

		c, err := NewClient(Config{
			RetryPolicy: retry.Intervals(time.Millisecond, time.Millisecond, time.Millisecond),
			Tokens:      tokens,
			AppSecret:   "shh",
		})
		require.NoError(t, err)

		p, err := request.NewPlan("POST", server.URL+"/logs", "payload")
		require.NoError(t, err)
		call, err := SendAndWait(context.Background(), c, p)
		require.NoError(t, err)
		assert.Equal(t, 200, call.StatusCode())
		assert.Equal(t, []byte("ok"), call.Body)
		assert.Equal(t, 2, call.Attempt)

		got := backend.received()
		require.Len(t, got, 3)
		for _, r := range got {
			assert.Equal(t, "Bearer cur", r.auth)
			assert.Equal(t, "shh", r.secret)
			assert.Equal(t, "", r.encoding)
			assert.Equal(t, "payload", r.body)
		}
	})

	t.Run("payload time selects token", func(t *testing.T) {
		backend := &flakyBackend{}
		server := httptest.NewServer(backend)
		defer server.Close()

		c, err := NewClient(Config{Tokens: tokens})
		require.NoError(t, err)

		p, err := request.NewPlan("POST", server.URL, "before rotation")
		require.NoError(t, err)
		p.Time = t0.Add(-time.Hour)
		_, err = SendAndWait(context.Background(), c, p)
		require.NoError(t, err)

		got := backend.received()
		require.Len(t, got, 1)
		assert.Equal(t, "Bearer old", got[0].auth)
	})

	t.Run("compression", func(t *testing.T) {
		backend := &flakyBackend{}
		server := httptest.NewServer(backend)
		defer server.Close()

		c, err := NewClient(Config{Compression: true})
		require.NoError(t, err)

		p, err := request.NewPlan("POST", server.URL, "squeeze me")
		require.NoError(t, err)
		_, err = SendAndWait(context.Background(), c, p)
		require.NoError(t, err)

		require.NoError(t, c.SetCompressionEnabled(false))
		p, err = request.NewPlan("POST", server.URL, "leave me")
		require.NoError(t, err)
		_, err = SendAndWait(context.Background(), c, p)
		require.NoError(t, err)

		got := backend.received()
		require.Len(t, got, 2)
		assert.Equal(t, received{encoding: "gzip", body: "squeeze me"}, got[0])
		assert.Equal(t, received{body: "leave me"}, got[1])
	})

	t.Run("non-retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("who are you"))
		}))
		defer server.Close()

		c, err := NewClient(Config{})
		require.NoError(t, err)

		p, err := request.NewPlan("POST", server.URL, nil)
		require.NoError(t, err)
		call, err := SendAndWait(context.Background(), c, p)
		require.ErrorIs(t, err, ErrNonRetryable)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, 401, statusErr.StatusCode)
		assert.Equal(t, []byte("who are you"), statusErr.Body)
		assert.Equal(t, 0, call.Attempt)
	})

	t.Run("disable and re-enable", func(t *testing.T) {
		backend := &flakyBackend{}
		server := httptest.NewServer(backend)
		defer server.Close()

		c, err := NewClient(Config{Disabled: true})
		require.NoError(t, err)

		p, err := request.NewPlan("POST", server.URL, "x")
		require.NoError(t, err)
		_, err = SendAndWait(context.Background(), c, p)
		assert.ErrorIs(t, err, ErrDisabled)

		require.NoError(t, c.SetEnabled(true))
		_, err = SendAndWait(context.Background(), c, p)
		assert.NoError(t, err)
		assert.Len(t, backend.received(), 1)
	})
}
