// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvents(t *testing.T) {
	assert.Len(t, eventNames, numEvents)
	assert.Len(t, Events(), numEvents)
	events := Events()
	assert.Equal(t, AfterEnqueue, events[AfterEnqueue])
	assert.Equal(t, BeforeAttempt, events[BeforeAttempt])
	assert.Equal(t, AfterAttemptTimeout, events[AfterAttemptTimeout])
	assert.Equal(t, AfterAttempt, events[AfterAttempt])
	assert.Equal(t, AfterRetryScheduled, events[AfterRetryScheduled])
	assert.Equal(t, AfterCallEnd, events[AfterCallEnd])
}

func TestEvent_Name(t *testing.T) {
	assert.Equal(t, "AfterEnqueue", AfterEnqueue.Name())
	assert.Equal(t, "BeforeAttempt", BeforeAttempt.Name())
	assert.Equal(t, "AfterAttemptTimeout", AfterAttemptTimeout.Name())
	assert.Equal(t, "AfterAttempt", AfterAttempt.Name())
	assert.Equal(t, "AfterRetryScheduled", AfterRetryScheduled.String())
	assert.Equal(t, "AfterCallEnd", AfterCallEnd.String())
}
