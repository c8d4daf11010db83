// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import "time"

type options struct {
	Config      string        `short:"c" long:"config" description:"settings file (YAML)"`
	URL         string        `short:"u" long:"url" description:"destination URL" required:"true"`
	Method      string        `short:"X" long:"method" description:"HTTP method" default:"POST"`
	ContentType string        `long:"content-type" description:"payload content type" default:"application/json"`
	File        string        `short:"f" long:"file" description:"payload file, - for standard input" default:"-"`
	Time        string        `long:"time" description:"RFC 3339 time the payload was produced"`
	Wait        time.Duration `short:"w" long:"wait" description:"give up after this long" default:"1m"`
	Metrics     bool          `long:"metrics" description:"print call metrics to standard error"`

	TokenDir     string `long:"token-dir" description:"directory persisting the token history"`
	Token        string `long:"token" description:"rotate in a new auth token"`
	Account      string `long:"account" description:"account ID of the new token"`
	TokenStart   string `long:"token-start" description:"RFC 3339 start of the new token (default now)"`
	TokenExpires string `long:"token-expires" description:"RFC 3339 expiry of the new token"`
}
