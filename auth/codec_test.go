// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every combination of absent and present fields, with present string
// fields both empty and non-empty, survives a round trip.
func TestEncodeDecode_AllCombinations(t *testing.T) {
	for _, value := range []string{"", "x"} {
		for mask := 0; mask < 16; mask++ {
			var opts []TokenOption
			if mask&1 != 0 {
				opts = append(opts, WithAccountID(value))
			}
			if mask&2 != 0 {
				opts = append(opts, WithAuthToken(value))
			}
			if mask&4 != 0 {
				opts = append(opts, WithStartTime(t0))
			}
			if mask&8 != 0 {
				opts = append(opts, WithExpiresOn(t0.Add(time.Hour)))
			}
			t.Run(fmt.Sprintf("value=%q,mask=%04b", value, mask), func(t *testing.T) {
				x := mustToken(t, opts...)
				b, err := Encode(x)
				require.NoError(t, err)
				y, err := Decode(b)
				require.NoError(t, err)
				assert.True(t, x.Equal(y), "got %s", string(b))
			})
		}
	}
}

func TestEncode_Stable(t *testing.T) {
	x := mustToken(t, WithAccountID("acct"), WithAuthToken(""), WithStartTime(t0))
	b, err := Encode(x)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1,"token":{"accountId":"acct","authToken":"","startTime":"2021-03-14T15:09:26Z"}}`, string(b))
}

func TestDecode_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"garbage", `\x00\x01`},
		{"wrong type", `[]`},
		{"no version", `{"token":{}}`},
		{"future version", `{"v":2,"token":{}}`},
		{"no token", `{"v":1}`},
		{"bad time", `{"v":1,"token":{"startTime":"yesterday"}}`},
		{"bad window", `{"v":1,"token":{"startTime":"2021-01-02T00:00:00Z","expiresOn":"2021-01-01T00:00:00Z"}}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Decode([]byte(testCase.data))
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}

func TestEncodeDecodeHistory(t *testing.T) {
	h, err := NewHistory(
		mustToken(t, WithAuthToken("legacy"), WithExpiresOn(t0)),
		mustToken(t, WithAccountID("a"), WithAuthToken("b"), WithStartTime(t0)),
		mustToken(t, WithAccountID("a"), WithAuthToken("c"), WithStartTime(t0.Add(time.Hour))),
	)
	require.NoError(t, err)
	b, err := EncodeHistory(h)
	require.NoError(t, err)
	h2, err := DecodeHistory(b)
	require.NoError(t, err)
	want, got := h.Entries(), h2.Entries()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "entry %d", i)
	}

	t.Run("empty", func(t *testing.T) {
		b, err := EncodeHistory(&History{})
		require.NoError(t, err)
		h, err := DecodeHistory(b)
		require.NoError(t, err)
		assert.Equal(t, 0, h.Len())
	})
}

func TestDecodeHistory_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"garbage", `{`},
		{"future version", `{"v":9,"tokens":[]}`},
		{"bad token", `{"v":1,"tokens":[{"expiresOn":7}]}`},
		{"out of order", `{"v":1,"tokens":[{"startTime":"2021-01-02T00:00:00Z","expiresOn":"2021-01-03T00:00:00Z"},{"startTime":"2021-01-01T00:00:00Z","expiresOn":"2021-01-03T00:00:00Z"}]}`},
		{"open not last", `{"v":1,"tokens":[{"startTime":"2021-01-01T00:00:00Z"},{"startTime":"2021-01-02T00:00:00Z"}]}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := DecodeHistory([]byte(testCase.data))
			assert.ErrorIs(t, err, ErrEncoding)
		})
	}
}
