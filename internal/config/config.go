// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for treesync.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the version string and
	// the optional metrics listen address.
	App App `envPrefix:"APP_"`

	// Remote holds connection settings for the remote storage server the
	// engine synchronizes against.
	Remote Remote `envPrefix:"REMOTE_"`

	// Storage selects and configures the local node store backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds scheduling parameters for the sync engine.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values.
type App struct {
	// Version is the semantic version string of the running application
	// (e.g. "1.2.3").
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// ListenAddress is the optional TCP address of the local HTTP API that
	// exposes the synced tree, in "host:port" format. Empty disables the
	// API server.
	// Env: APP_LISTEN_ADDRESS
	ListenAddress string `env:"LISTEN_ADDRESS"`

	// MetricsAddress is the optional TCP address on which Prometheus
	// metrics are exposed, in "host:port" format. Empty disables the
	// metrics endpoint.
	// Env: APP_METRICS_ADDRESS
	MetricsAddress string `env:"METRICS_ADDRESS"`
}

// Remote holds network settings for the outbound transport layer.
type Remote struct {
	// BaseURL is the root URL of the remote storage server
	// (e.g. "https://storage.example.com/data").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// Token is the bearer token attached to every remote request.
	// Env: REMOTE_TOKEN
	Token string `env:"TOKEN"`

	// RequestTimeout is the maximum duration allowed for a single remote
	// request before the transport reports a network problem (e.g. "30s").
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Node store backends selectable via [Storage.Backend].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Storage selects and configures the local node store.
type Storage struct {
	// Backend selects the node store implementation: "memory", "file", or
	// "sqlite".
	// Env: STORAGE_BACKEND
	Backend string `env:"BACKEND"`

	// Path is the on-disk location of the store for the file and sqlite
	// backends. Ignored by the memory backend.
	// Env: STORAGE_PATH
	Path string `env:"PATH"`
}

// Sync holds scheduling parameters for the sync engine.
type Sync struct {
	// Interval is the delay between sync cycles while the application is
	// in the foreground (e.g. "10s").
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// BackgroundInterval is the delay between sync cycles while the
	// application is in the background (e.g. "1m").
	// Env: SYNC_BACKGROUND_INTERVAL
	BackgroundInterval time.Duration `env:"BACKGROUND_INTERVAL"`

	// NumThreads bounds the number of concurrent remote requests issued by
	// the sync engine.
	// Env: SYNC_NUM_THREADS
	NumThreads int `env:"NUM_THREADS"`
}

// Defaults applied by validate when the merged configuration leaves the
// corresponding field unset.
const (
	DefaultSyncInterval           = 10 * time.Second
	DefaultBackgroundSyncInterval = time.Minute
	DefaultRequestTimeout         = 30 * time.Second
	DefaultNumThreads             = 10
)

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
