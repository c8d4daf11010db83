// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEncoding is wrapped by every error returned from Decode and
// DecodeHistory for data that is not a valid encoding.
var ErrEncoding = errors.New("httpq/auth: invalid token encoding")

// schemaVersion tags every encoded document.
const schemaVersion = 1

// tokenDoc is the stable wire form of a TokenInfo. A nil pointer is an
// absent field. A non-nil pointer to the zero value is a field that is
// present but empty.
type tokenDoc struct {
	AccountID *string    `json:"accountId,omitempty"`
	AuthToken *string    `json:"authToken,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	ExpiresOn *time.Time `json:"expiresOn,omitempty"`
}

type tokenEnvelope struct {
	Version int       `json:"v"`
	Token   *tokenDoc `json:"token"`
}

type historyEnvelope struct {
	Version int        `json:"v"`
	Tokens  []tokenDoc `json:"tokens"`
}

// Encode serializes t to a versioned document that records which
// fields are present.
func Encode(t TokenInfo) ([]byte, error) {
	return json.Marshal(tokenEnvelope{Version: schemaVersion, Token: toDoc(t)})
}

// Decode reverses Encode. Corrupt or unsupported data produces an
// error wrapping ErrEncoding.
func Decode(b []byte) (TokenInfo, error) {
	var env tokenEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if env.Version != schemaVersion {
		return TokenInfo{}, fmt.Errorf("%w: unsupported version %d", ErrEncoding, env.Version)
	}
	if env.Token == nil {
		return TokenInfo{}, fmt.Errorf("%w: missing token", ErrEncoding)
	}
	return fromDoc(*env.Token)
}

// EncodeHistory serializes every entry of h, in order.
func EncodeHistory(h *History) ([]byte, error) {
	entries := h.Entries()
	env := historyEnvelope{
		Version: schemaVersion,
		Tokens:  make([]tokenDoc, len(entries)),
	}
	for i := range entries {
		env.Tokens[i] = *toDoc(entries[i])
	}
	return json.Marshal(env)
}

// DecodeHistory reverses EncodeHistory. Data that decodes to a
// sequence of tokens violating the ordering rules of History is also
// reported as an error wrapping ErrEncoding.
func DecodeHistory(b []byte) (*History, error) {
	var env historyEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if env.Version != schemaVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrEncoding, env.Version)
	}
	entries := make([]TokenInfo, len(env.Tokens))
	for i := range env.Tokens {
		t, err := fromDoc(env.Tokens[i])
		if err != nil {
			return nil, err
		}
		if i > 0 && t.startsBefore(entries[i-1]) {
			return nil, fmt.Errorf("%w: tokens out of order", ErrEncoding)
		}
		if i > 0 && entries[i-1].Open() {
			return nil, fmt.Errorf("%w: open token is not the most recent", ErrEncoding)
		}
		entries[i] = t
	}
	h := &History{}
	h.replace(entries)
	return h, nil
}

func toDoc(t TokenInfo) *tokenDoc {
	var d tokenDoc
	if v, ok := t.AccountID(); ok {
		d.AccountID = &v
	}
	if v, ok := t.AuthToken(); ok {
		d.AuthToken = &v
	}
	if v, ok := t.StartTime(); ok {
		d.StartTime = &v
	}
	if v, ok := t.ExpiresOn(); ok {
		d.ExpiresOn = &v
	}
	return &d
}

func fromDoc(d tokenDoc) (TokenInfo, error) {
	var opts []TokenOption
	if d.AccountID != nil {
		opts = append(opts, WithAccountID(*d.AccountID))
	}
	if d.AuthToken != nil {
		opts = append(opts, WithAuthToken(*d.AuthToken))
	}
	if d.StartTime != nil {
		opts = append(opts, WithStartTime(*d.StartTime))
	}
	if d.ExpiresOn != nil {
		opts = append(opts, WithExpiresOn(*d.ExpiresOn))
	}
	t, err := NewTokenInfo(opts...)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return t, nil
}
