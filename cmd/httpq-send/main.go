// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command httpq-send delivers one payload through a queued transport,
// retrying transient failures, and prints the response.
//
// Usage:
//
//	httpq-send -u https://logs.example.com/v1/batch -f batch.json \
//		--token-dir ~/.httpq --token "$TOKEN"
//
// Settings are read from the file named by -c and from HTTPQ_
// environment variables. See package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	var flagsErr *flags.Error
	if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(os.Stdout, flagsErr.Message)
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "httpq-send:", err)
		os.Exit(1)
	}
}
