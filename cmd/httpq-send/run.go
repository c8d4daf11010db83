// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogama/httpq"
	"github.com/gogama/httpq/auth"
	"github.com/gogama/httpq/config"
	"github.com/gogama/httpq/metrics"
	"github.com/gogama/httpq/request"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
)

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts := &options{}
	if _, err := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args); err != nil {
		return err
	}

	settings, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	logger := config.NewLogger(settings.Log, stderr)

	tokens, err := loadTokens(opts, &logger)
	if err != nil {
		return err
	}

	cfg := settings.ClientConfig(&logger)
	cfg.Tokens = tokens
	cfg.Handlers = &httpq.HandlerGroup{}
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}
	collector.Install(cfg.Handlers)
	client, err := httpq.NewClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()
	if prober := settings.Prober(&logger); prober != nil {
		go func() {
			_ = prober.Run(ctx)
		}()
		go func() {
			_ = client.Watch(ctx, prober)
		}()
	}

	plan, err := newPlan(ctx, opts, stdin)
	if err != nil {
		return err
	}
	call, err := httpq.SendAndWait(ctx, client, plan)
	if opts.Metrics {
		if err := writeMetrics(reg, stderr); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d %s\n", call.StatusCode(), call.Body)
	return nil
}

// loadTokens restores the persisted token history, rotating in the
// token given on the command line.
func loadTokens(opts *options, logger *zerolog.Logger) (*auth.History, error) {
	h := &auth.History{}
	var keychain *auth.Keychain
	if opts.TokenDir != "" {
		keychain = &auth.Keychain{Store: &auth.DirStore{Dir: opts.TokenDir}, Logger: logger}
		var err error
		if h, err = keychain.Restore(); err != nil {
			return nil, err
		}
	}
	if opts.Token == "" {
		return h, nil
	}

	start := time.Now()
	if opts.TokenStart != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, opts.TokenStart); err != nil {
			return nil, fmt.Errorf("invalid --token-start: %w", err)
		}
	}
	tokOpts := []auth.TokenOption{auth.WithAuthToken(opts.Token), auth.WithStartTime(start)}
	if opts.Account != "" {
		tokOpts = append(tokOpts, auth.WithAccountID(opts.Account))
	}
	if opts.TokenExpires != "" {
		expires, err := time.Parse(time.RFC3339, opts.TokenExpires)
		if err != nil {
			return nil, fmt.Errorf("invalid --token-expires: %w", err)
		}
		tokOpts = append(tokOpts, auth.WithExpiresOn(expires))
	}
	tok, err := auth.NewTokenInfo(tokOpts...)
	if err != nil {
		return nil, err
	}
	if err = h.Append(tok); err != nil {
		return nil, err
	}
	if keychain != nil {
		if err = keychain.Save(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func newPlan(ctx context.Context, opts *options, stdin io.Reader) (*request.Plan, error) {
	var body io.Reader = stdin
	if opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		body = f
	}
	p, err := request.NewPlanWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return nil, err
	}
	p.Header.Set("Content-Type", opts.ContentType)
	if opts.Time != "" {
		if p.Time, err = time.Parse(time.RFC3339, opts.Time); err != nil {
			return nil, fmt.Errorf("invalid --time: %w", err)
		}
	}
	return p, nil
}

func writeMetrics(g prometheus.Gatherer, w io.Writer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
