// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package auth models the credentials attached to queued requests.

A TokenInfo is one credential with an optional half-open window of
applicability [StartTime, ExpiresOn). A History orders the credentials
issued over time and resolves which one applied at a given instant:

	h := &auth.History{}
	tok, _ := auth.NewTokenInfo(auth.WithAuthToken(secret), auth.WithStartTime(now))
	_ = h.Append(tok)
	...
	if tok, ok := h.Applicable(producedAt); ok {
		...
	}

Encode, Decode, EncodeHistory and DecodeHistory convert to and from a
versioned document that distinguishes an absent field from an empty one.
A Keychain persists a History in a secure Store.
*/
package auth
