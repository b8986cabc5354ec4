// Package config provides configuration loading, merging, and validation
// facilities for spacesync.
//
// Configuration is assembled from multiple sources in the following priority
// order (earlier sources win, later ones fill the gaps):
//  1. Command-line flags
//  2. Environment variables
//  3. JSON config file
//  4. Built-in defaults
//
// The main entry point is [GetStructuredConfig].
package config
