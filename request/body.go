// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"errors"
	"io"
	"net/url"
)

const badBodyTypeMsg = "httpq/request: invalid type (for body use nil, " +
	"string, []byte, url.Values, io.Reader or io.ReadCloser)"

// BodyBytes buffers a generic body parameter into a byte slice that the
// plan owns.
//
// The body parameter may be nil, or it may be a string, []byte,
// url.Values, io.Reader, or io.ReadCloser. A []byte is copied, since a
// queued plan may be sent long after the caller has reused its buffer.
// url.Values are form-encoded. Readers are read to the end, and
// ReadClosers are closed even if reading fails.
func BodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return bytes.Clone(x), nil
	case url.Values:
		return []byte(x.Encode()), nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if cerr := x.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		return io.ReadAll(x)
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}
