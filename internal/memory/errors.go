package memory

import "github.com/m-mizutani/goerr/v2"

// Error kinds. Callers (the HTTP layer in particular) branch on these
// with errors.Is to map failures to status codes.
var (
	// ErrValidation marks malformed identifiers or missing required fields,
	// rejected before any write.
	ErrValidation = goerr.New("validation failed")

	// ErrNotFound marks lookups for records or agents that do not exist.
	// Update/delete by unknown id is reported as zero-effect, not as this error.
	ErrNotFound = goerr.New("not found")

	// ErrProtectedAgent marks attempts to delete the default agent.
	ErrProtectedAgent = goerr.New("default agent is protected")

	// ErrProvider marks embedding provider failures. These fail the
	// triggering ingest or query call outright.
	ErrProvider = goerr.New("embedding provider failed")
)
