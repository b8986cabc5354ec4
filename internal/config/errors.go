package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidAppConfigs indicates invalid file-system settings
	// (for example, an empty data directory or registry path).
	ErrInvalidAppConfigs = errors.New("invalid app configuration")
	// ErrInvalidWorkerConfigs indicates invalid scheduling settings
	// (for example, a zero tick interval).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
