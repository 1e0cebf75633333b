// Package cmd implements the reqx CLI commands using Cobra.
//
// Available commands:
//   - get, post, put, patch, delete, head, options: send one request
//   - send: run YAML request files and check their expectations
//   - bench: replay a request through a session pool and report latency
//   - history: list or query exchanges recorded with --history
//   - import: convert curl commands into request files
//   - version: show reqx version information
//
// Session behavior (timeouts, cookies, throttling, compression) comes from
// the config file, REQX_* environment variables and flags, in that order.
package cmd
