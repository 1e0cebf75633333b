// Package output renders responses and request-file runs for the terminal
// and for CI.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Run-oriented formatters accumulate results and write them on Flush.
package output
