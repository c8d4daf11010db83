// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gogama/httpq"
	"github.com/gogama/httpq/reachability"
	"github.com/gogama/httpq/retry"
	"github.com/gogama/httpq/session"
	"github.com/gogama/httpq/timeout"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "HTTPQ_"

// Settings is the complete configuration of a queued transport.
type Settings struct {
	Enabled      bool         `koanf:"enabled"`
	Compression  bool         `koanf:"compression"`
	AppSecret    string       `koanf:"app_secret"`
	Retry        Retry        `koanf:"retry"`
	Timeout      Timeout      `koanf:"timeout"`
	Rate         Rate         `koanf:"rate"`
	Session      Session      `koanf:"session"`
	Log          Log          `koanf:"log"`
	Reachability Reachability `koanf:"reachability"`
}

// Retry configures the backoff schedule.
type Retry struct {
	// Intervals are the delays before the first, second, ... retry.
	// The call is abandoned once they run out.
	Intervals []time.Duration `koanf:"intervals" validate:"dive,gte=0"`
	// Jitter randomizes each delay d within [d/2, d].
	Jitter bool `koanf:"jitter"`
}

// Timeout configures per-attempt timeouts.
type Timeout struct {
	Attempt time.Duration   `koanf:"attempt" validate:"gt=0"`
	After   []time.Duration `koanf:"after" validate:"dive,gt=0"`
}

// Rate configures dispatch throttling. A zero limit disables it.
type Rate struct {
	Limit float64 `koanf:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0,required_with=Limit"`
}

// Session configures the HTTP connection state.
type Session struct {
	HTTP2        bool          `koanf:"http2"`
	PingInterval time.Duration `koanf:"ping_interval" validate:"gte=0"`
	MaxIdleConns int           `koanf:"max_idle_conns" validate:"gte=0"`
}

// Log configures the logger returned by NewLogger.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Reachability configures the backend prober. An empty Probe address
// disables it.
type Reachability struct {
	Probe    string        `koanf:"probe" validate:"omitempty,hostname_port"`
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

var defaults = map[string]any{
	"enabled":                true,
	"compression":            false,
	"app_secret":             "",
	"retry.intervals":        durationStrings(retry.DefaultIntervals),
	"retry.jitter":           false,
	"timeout.attempt":        "30s",
	"rate.limit":             0,
	"rate.burst":             0,
	"session.http2":          true,
	"session.ping_interval":  "0s",
	"session.max_idle_conns": 100,
	"log.level":              "info",
	"log.pretty":             false,
	"reachability.probe":     "",
	"reachability.interval":  reachability.DefaultProbeInterval.String(),
}

var validate = validator.New()

func durationStrings(ds []time.Duration) []string {
	ss := make([]string, len(ds))
	for i, d := range ds {
		ss[i] = d.String()
	}
	return ss
}

// Load reads settings from the defaults, then the YAML file at path if
// path is not empty, then the environment.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("httpq/config: failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("httpq/config: failed to load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("httpq/config: failed to load environment: %w", err)
	}

	s := &Settings{}
	if err := k.UnmarshalWithConf("", s, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           s,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.DecodeHookFuncType(splitList),
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("httpq/config: failed to unmarshal: %w", err)
	}

	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("httpq/config: invalid settings: %w", err)
	}
	return s, nil
}

// splitList decodes a comma-separated string, as environment variables
// carry lists, into a slice of any element type. The elements are then
// decoded individually, so "1s,2s" fills a []time.Duration.
func splitList(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
		return data, nil
	}
	str := data.(string)
	if str == "" {
		return []string{}, nil
	}
	parts := strings.Split(str, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", "\x00")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "\x00", "_")
}

// ClientConfig translates s into a client configuration. The caller
// supplies whatever s cannot express, such as the token history.
func (s *Settings) ClientConfig(logger *zerolog.Logger) httpq.Config {
	var p retry.Policy = retry.Intervals(s.Retry.Intervals...)
	if s.Retry.Jitter {
		p = retry.WithJitter(p, time.Now())
	}
	cfg := httpq.Config{
		SessionConfig: session.Config{
			HTTP2:        s.Session.HTTP2,
			PingInterval: s.Session.PingInterval,
			MaxIdleConns: s.Session.MaxIdleConns,
		},
		RetryPolicy:   p,
		TimeoutPolicy: timeout.Adaptive(s.Timeout.Attempt, s.Timeout.After...),
		AppSecret:     s.AppSecret,
		Logger:        logger,
		Disabled:      !s.Enabled,
		Compression:   s.Compression,
	}
	if s.Rate.Limit > 0 {
		cfg.Limiter = rate.NewLimiter(rate.Limit(s.Rate.Limit), s.Rate.Burst)
	}
	return cfg
}

// Prober returns a prober of the configured address, or nil if no
// address is configured.
func (s *Settings) Prober(logger *zerolog.Logger) *reachability.Prober {
	if s.Reachability.Probe == "" {
		return nil
	}
	return &reachability.Prober{
		Address:  s.Reachability.Probe,
		Interval: s.Reachability.Interval,
		Logger:   logger,
	}
}
