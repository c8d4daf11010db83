// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned by NewTokenInfo when a token's start
// time is after its expiry time.
var ErrInvalidWindow = errors.New("httpq/auth: start time after expiry")

// A TokenInfo describes one credential together with the window of
// time during which it applies. Every field is optional.
//
// A TokenInfo is immutable. The zero value is a token with every field
// absent, which applies at all times but carries no credential.
type TokenInfo struct {
	accountID    string
	hasAccountID bool
	authToken    string
	hasAuthToken bool
	startTime    time.Time
	hasStart     bool
	expiresOn    time.Time
	hasExpires   bool
}

// A TokenOption sets one optional field of a TokenInfo under
// construction.
type TokenOption func(*TokenInfo)

// WithAccountID sets the account identifier.
func WithAccountID(id string) TokenOption {
	return func(t *TokenInfo) {
		t.accountID, t.hasAccountID = id, true
	}
}

// WithAuthToken sets the secret credential.
func WithAuthToken(token string) TokenOption {
	return func(t *TokenInfo) {
		t.authToken, t.hasAuthToken = token, true
	}
}

// WithStartTime sets the inclusive start of the window.
func WithStartTime(start time.Time) TokenOption {
	return func(t *TokenInfo) {
		t.startTime, t.hasStart = start, true
	}
}

// WithExpiresOn sets the exclusive end of the window.
func WithExpiresOn(expires time.Time) TokenOption {
	return func(t *TokenInfo) {
		t.expiresOn, t.hasExpires = expires, true
	}
}

// NewTokenInfo constructs a TokenInfo from options. It returns
// ErrInvalidWindow if both a start time and an expiry time are given
// and the start time is after the expiry time.
//
// Times are stored with their monotonic clock reading stripped, so a
// TokenInfo compares equal to its decoded form.
func NewTokenInfo(opts ...TokenOption) (TokenInfo, error) {
	var t TokenInfo
	for _, opt := range opts {
		opt(&t)
	}
	t.startTime = t.startTime.Round(0)
	t.expiresOn = t.expiresOn.Round(0)
	if t.hasStart && t.hasExpires && t.startTime.After(t.expiresOn) {
		return TokenInfo{}, ErrInvalidWindow
	}
	return t, nil
}

// AccountID returns the account identifier and whether it is present.
func (t TokenInfo) AccountID() (string, bool) {
	return t.accountID, t.hasAccountID
}

// AuthToken returns the secret credential and whether it is present.
func (t TokenInfo) AuthToken() (string, bool) {
	return t.authToken, t.hasAuthToken
}

// StartTime returns the inclusive start of the window and whether it
// is present. An absent start means the token applies to everything
// before its expiry.
func (t TokenInfo) StartTime() (time.Time, bool) {
	return t.startTime, t.hasStart
}

// ExpiresOn returns the exclusive end of the window and whether it is
// present. An absent expiry means the token is still valid with no
// known upper bound.
func (t TokenInfo) ExpiresOn() (time.Time, bool) {
	return t.expiresOn, t.hasExpires
}

// Open indicates whether the token has no expiry.
func (t TokenInfo) Open() bool {
	return !t.hasExpires
}

// Contains indicates whether at falls within the half-open window
// [StartTime, ExpiresOn).
func (t TokenInfo) Contains(at time.Time) bool {
	if t.hasStart && at.Before(t.startTime) {
		return false
	}
	if t.hasExpires && !at.Before(t.expiresOn) {
		return false
	}
	return true
}

// Closed returns a copy of t expiring at at. The copy's window is
// empty if at is before t's start time.
func (t TokenInfo) Closed(at time.Time) TokenInfo {
	t.expiresOn, t.hasExpires = at.Round(0), true
	return t
}

// Equal reports whether t and u have the same fields present with
// equal values.
func (t TokenInfo) Equal(u TokenInfo) bool {
	return t.hasAccountID == u.hasAccountID && t.accountID == u.accountID &&
		t.hasAuthToken == u.hasAuthToken && t.authToken == u.authToken &&
		t.hasStart == u.hasStart && t.startTime.Equal(u.startTime) &&
		t.hasExpires == u.hasExpires && t.expiresOn.Equal(u.expiresOn)
}

// startsBefore orders tokens by start time with an absent start first.
func (t TokenInfo) startsBefore(u TokenInfo) bool {
	switch {
	case !t.hasStart:
		return u.hasStart
	case !u.hasStart:
		return false
	default:
		return t.startTime.Before(u.startTime)
	}
}
