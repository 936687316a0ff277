// Package errs holds the sentinel error kinds shared across the repository
// engine. Every layer wraps one of these with path/opcode context via
// fmt.Errorf("...: %w", kind) so callers can both read a human message and
// errors.Is against the kind.
package errs

import "errors"

var (
	ErrConfig             = errors.New("configuration error")
	ErrPathEscape          = errors.New("path escapes repository root")
	ErrNotFound            = errors.New("not found")
	ErrAuthFailure         = errors.New("authentication failure")
	ErrMalformedRecord     = errors.New("malformed sealed record")
	ErrHashMismatch        = errors.New("hash mismatch")
	ErrMissingBlock        = errors.New("missing block")
	ErrCatalogConflict     = errors.New("catalog conflict")
	ErrTransport           = errors.New("transport failure")
	ErrRetryExhausted      = errors.New("retry exhausted")
	ErrIntegrityViolation  = errors.New("integrity violation")
	ErrCancelled           = errors.New("cancelled")
)

// ExitCode maps an error kind to the process exit code from the operator
// surface table. Unrecognized errors exit 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfig):
		return 2
	case errors.Is(err, ErrTransport):
		return 3
	case errors.Is(err, ErrIntegrityViolation):
		return 4
	case errors.Is(err, ErrCatalogConflict):
		return 5
	default:
		return 1
	}
}
