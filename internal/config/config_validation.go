// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package config

import "net/url"

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup, applying documented
// defaults for unset scheduling fields.
//
// Returns nil if the configuration is valid, or a sentinel error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = DefaultSyncInterval
	}
	if cfg.Sync.BackgroundInterval == 0 {
		cfg.Sync.BackgroundInterval = DefaultBackgroundSyncInterval
	}
	if cfg.Sync.NumThreads == 0 {
		cfg.Sync.NumThreads = DefaultNumThreads
	}
	if cfg.Remote.RequestTimeout == 0 {
		cfg.Remote.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}

	if cfg.Sync.Interval < 0 || cfg.Sync.BackgroundInterval < 0 || cfg.Sync.NumThreads < 0 {
		return ErrInvalidSyncConfigs
	}

	if cfg.Remote.BaseURL != "" {
		u, err := url.Parse(cfg.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalidRemoteConfigs
		}
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if cfg.Storage.Path == "" {
			return ErrInvalidStorageConfigs
		}
	default:
		return ErrInvalidStorageConfigs
	}

	return nil
}
