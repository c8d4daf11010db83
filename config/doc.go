// Copyright 2021 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package config loads the settings of a queued transport from defaults,
an optional YAML file, and HTTPQ_ environment variables, in increasing
order of precedence.

A YAML file looks like:

	enabled: true
	compression: true
	app_secret: s3cr3t
	retry:
	  intervals: [10s, 5m, 20m]
	  jitter: true
	timeout:
	  attempt: 30s
	  after: [1m]
	rate:
	  limit: 5
	  burst: 10
	session:
	  http2: true
	  ping_interval: 15s
	log:
	  level: debug
	reachability:
	  probe: logs.example.com:443
	  interval: 30s

Environment variables name keys with underscores separating sections,
and doubled underscores standing for literal ones. For example
HTTPQ_RETRY_INTERVALS=500ms,1s sets retry.intervals and
HTTPQ_APP__SECRET sets app_secret.
*/
package config
