package cmd

// Exit codes for the reqx CLI
const (
	// ExitSuccess indicates the request succeeded and every check passed
	ExitSuccess = 0

	// ExitFailure indicates a failed check, a failed threshold or an
	// unclassified error
	ExitFailure = 1

	// ExitParseError indicates a request file that could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a connection, redirect or I/O error
	ExitNetworkError = 4

	// ExitTimeout indicates a connect or transfer timeout
	ExitTimeout = 5

	// ExitHTTPError indicates a 4xx or 5xx response with --fail
	ExitHTTPError = 6

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
