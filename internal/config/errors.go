package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates invalid node store settings
	// (for example, an unknown backend or a missing on-disk path).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync scheduling settings
	// (for example, a negative interval or thread count).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidRemoteConfigs indicates invalid remote server settings
	// (for example, a malformed base URL).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
)
