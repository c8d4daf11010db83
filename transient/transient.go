// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// A Category is the transience category of a particular error, as
// reported by function Categorize.
//
// The category Not means the error is not known to be transient. All
// other categories indicate a failure of the network path to the
// backend which has some prospect of clearing up on its own, so that a
// later attempt may succeed.
type Category int

const (
	// Not indicates a nil error or any error not recognized as
	// transient.
	Not Category = iota
	// Timeout indicates a client-side timeout.
	//
	// Categorize returns Timeout if the error or any of its wrapped
	// causes has a Timeout method that reports true.
	Timeout
	// ConnRefused indicates the remote host refused the connection
	// (ECONNREFUSED). The service may be restarting.
	ConnRefused
	// ConnReset indicates the remote host reset a previously active
	// connection (ECONNRESET), or the connection broke (EPIPE).
	ConnReset
	// Unreachable indicates the network or host could not be reached
	// (ENETUNREACH, EHOSTUNREACH, ENETDOWN). This is typical while a
	// device is offline or switching networks.
	Unreachable
	// EOF indicates the connection closed before a complete response
	// was read.
	EOF
	// DNS indicates a name resolution failure that is temporary, or
	// that happened because no resolver was reachable.
	DNS
)

var categoryNames = []string{
	"Not",
	"Timeout",
	"ConnRefused",
	"ConnReset",
	"Unreachable",
	"EOF",
	"DNS",
}

// String returns the name of the category.
func (cat Category) String() string {
	if cat < 0 || int(cat) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[cat]
}

// Categorize returns the transience category of the given error. A nil
// error, and an error that is not transient, both produce Not.
//
// Categorize examines wrapped causes, not just err itself. It never
// consults a Temporary method, as the semantics of Temporary aren't
// entirely clear.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	var hasTimeout hasTimeout
	if errors.As(err, &hasTimeout) && hasTimeout.Timeout() {
		return Timeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.EPIPE:
			return ConnReset
		case syscall.ECONNREFUSED:
			return ConnRefused
		case syscall.ENETUNREACH, syscall.EHOSTUNREACH, syscall.ENETDOWN:
			return Unreachable
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || !dnsErr.IsNotFound) {
		return DNS
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return EOF
	}

	return Not
}

type hasTimeout interface {
	Timeout() bool
}
