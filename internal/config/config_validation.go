// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package config

// validate checks that the final merged [StructuredConfig] satisfies all
// application invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or a descriptive error otherwise.
func (cfg *StructuredConfig) validate() error {
	if cfg.App.DataDir == "" || cfg.App.RegistryFile == "" {
		return ErrInvalidAppConfigs
	}

	if cfg.Workers.TickInterval <= 0 || cfg.Workers.ReaskAfter <= 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
