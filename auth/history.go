// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrOpenWindow is returned by History.Append when the token would
// leave an open-ended token somewhere other than the most recent
// position.
var ErrOpenWindow = errors.New("httpq/auth: open token must be the most recent")

// A History is the ordered sequence of credentials issued over time.
// It answers which credential applied at a given point in time, so that
// a payload produced under an earlier credential can be delivered with
// that credential.
//
// Entries are sorted by start time, with an absent start sorting first.
// At most one entry is open-ended, and it is always the entry with the
// latest start.
//
// The zero value is an empty history ready to use. A History is safe
// for concurrent use by multiple goroutines.
type History struct {
	lock    sync.RWMutex
	entries []TokenInfo
}

// NewHistory returns a history containing toks, appended in order.
func NewHistory(toks ...TokenInfo) (*History, error) {
	h := &History{}
	for _, tok := range toks {
		if err := h.Append(tok); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append inserts tok in start-time order.
//
// If tok is the most recent by start and the previous most recent entry
// is open-ended, the previous entry is closed at tok's start time. This
// is the credential rotation case: a new token supersedes the current
// one from the moment it starts.
//
// Append returns ErrOpenWindow, leaving the history unchanged, if tok
// is open-ended but an existing entry starts after it, or if rotation
// is needed but tok has no start time to close the previous entry at.
func (h *History) Append(tok TokenInfo) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	n := len(h.entries)
	i := sort.Search(n, func(i int) bool {
		return tok.startsBefore(h.entries[i])
	})
	if i < n {
		if tok.Open() {
			return ErrOpenWindow
		}
	} else if n > 0 && h.entries[n-1].Open() {
		start, ok := tok.StartTime()
		if !ok {
			return ErrOpenWindow
		}
		h.entries[n-1] = h.entries[n-1].Closed(start)
	}

	h.entries = append(h.entries, TokenInfo{})
	copy(h.entries[i+1:], h.entries[i:])
	h.entries[i] = tok
	return nil
}

// Applicable returns the token whose window contains at. If several
// windows contain at, the one with the latest start wins. The boolean
// result is false if no entry applies, in which case the caller sends
// no credential.
func (h *History) Applicable(at time.Time) (TokenInfo, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	// Index of the first entry starting strictly after at.
	j := sort.Search(len(h.entries), func(i int) bool {
		start, ok := h.entries[i].StartTime()
		return ok && start.After(at)
	})
	for i := j - 1; i >= 0; i-- {
		if h.entries[i].Contains(at) {
			return h.entries[i], true
		}
	}
	return TokenInfo{}, false
}

// Latest returns the entry with the latest start, if any.
func (h *History) Latest() (TokenInfo, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if len(h.entries) == 0 {
		return TokenInfo{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Entries returns a copy of the history in start-time order.
func (h *History) Entries() []TokenInfo {
	h.lock.RLock()
	defer h.lock.RUnlock()

	out := make([]TokenInfo, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.entries)
}

// Prune removes every entry that expired at or before before, and
// returns the number of entries removed. Callers prune once no pending
// or stored payload can reference the removed credentials.
func (h *History) Prune(before time.Time) int {
	h.lock.Lock()
	defer h.lock.Unlock()

	kept := h.entries[:0]
	for _, tok := range h.entries {
		if exp, ok := tok.ExpiresOn(); ok && !exp.After(before) {
			continue
		}
		kept = append(kept, tok)
	}
	removed := len(h.entries) - len(kept)
	for i := len(kept); i < len(h.entries); i++ {
		h.entries[i] = TokenInfo{}
	}
	h.entries = kept
	return removed
}

func (h *History) replace(entries []TokenInfo) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.entries = entries
}
