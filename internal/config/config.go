// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The spacesync Authors

package config

import (
	"fmt"
	"time"
)

// StructuredConfig is the top-level configuration container for spacesync.
// It aggregates all sub-configurations and is populated by merging values
// from environment variables, command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings: where space databases and the
	// registry file live on disk.
	App App `envPrefix:"APP_"`

	// Device holds optional device metadata announced to the remote host
	// after a successful handshake.
	Device Device `envPrefix:"DEVICE_"`

	// Remote holds settings for the connection to the remote sync host.
	Remote Remote `envPrefix:"REMOTE_"`

	// Workers holds scheduling settings for the per-space sync loops.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged with the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level file-system settings.
type App struct {
	// DataDir is the directory holding one database file per space.
	// Env: APP_DATA_DIR
	DataDir string `env:"DATA_DIR"`

	// RegistryFile is the path of the encrypted space registry file.
	// Env: APP_REGISTRY_FILE
	RegistryFile string `env:"REGISTRY_FILE"`
}

// Device holds optional device metadata. When Token is empty no device
// information is sent to the remote host.
type Device struct {
	// Token is an opaque device token registered with the remote host.
	// Env: DEVICE_TOKEN
	Token string `env:"TOKEN"`

	// Type is a free-form device type label (e.g. "desktop", "mobile").
	// Env: DEVICE_TYPE
	Type string `env:"TYPE"`
}

// Remote holds settings for the outbound connection to the sync host.
type Remote struct {
	// URL is the websocket endpoint of the remote sync host
	// (e.g. "wss://hub.example.com/sync"). Empty disables synchronization.
	// Env: REMOTE_URL
	URL string `env:"URL"`

	// DialTimeout bounds the initial websocket dial.
	// Env: REMOTE_DIAL_TIMEOUT
	DialTimeout time.Duration `env:"DIAL_TIMEOUT"`
}

// Workers holds scheduling settings for the per-space sync loops.
type Workers struct {
	// TickInterval is how often an idle engine is polled for housekeeping
	// work between inbound messages.
	// Env: WORKERS_TICK_INTERVAL
	TickInterval time.Duration `env:"TICK_INTERVAL"`

	// ReaskAfter is how long a quiescent engine waits before issuing a
	// fresh cursor request to the remote host.
	// Env: WORKERS_REASK_AFTER
	ReaskAfter time.Duration `env:"REASK_AFTER"`
}

// GetStructuredConfig builds the merged configuration from flags,
// environment variables, the optional JSON file, and built-in defaults,
// then validates the result.
func GetStructuredConfig() (*StructuredConfig, error) {
	cfg, err := newConfigBuilder().
		withFlags().
		withEnv().
		withJSON().
		withDefaults().
		build()
	if err != nil {
		return nil, fmt.Errorf("error building structured config: %w", err)
	}

	return cfg, nil
}
