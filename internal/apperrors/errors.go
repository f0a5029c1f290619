// Package apperrors declares the error kinds shared across the profiling
// pipeline. Call sites wrap these sentinels with context (github.com/pkg/errors)
// and callers classify failures with errors.Is.
package apperrors

import "errors"

var (
	// ErrSchema reports a structural violation: a table without columns, an
	// unknown or duplicate column reference, missing precision/scale, or an
	// invalid merge-strategy configuration.
	ErrSchema = errors.New("schema error")

	// ErrMapping reports a logical type that cannot be mapped onto the target
	// warehouse type system.
	ErrMapping = errors.New("mapping error")

	// ErrSourceNotFound reports a source file that is absent at load time.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNotFound reports a descriptor id that is not in the store.
	ErrNotFound = errors.New("not found")
)

// IsNotFound reports whether err maps to a "not found" response: either a
// missing source file or a missing stored descriptor.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound) || errors.Is(err, ErrNotFound)
}
