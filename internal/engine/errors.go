package engine

import "errors"

// Errors surfaced by engine operations. Side-effect failures are not here:
// they are logged with operation, project id, and step name, and never
// propagated to the caller of a lifecycle operation.
var (
	// ErrNotFound indicates the referenced project or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input, rejected before any
	// persistence attempt.
	ErrValidation = errors.New("validation failed")

	// ErrDependencyUnavailable indicates the store or search engine was
	// unreachable on a read path, where there is no fallback data.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
