// Package config handles configuration loading and management for reqx.
//
// It provides functionality for:
//   - Loading session settings from .reqx.yaml or .reqx.json files
//   - Default configuration values and merging
//   - Struct validation with readable field errors
//   - Request files describing a single request
//   - Watching files for changes
package config
