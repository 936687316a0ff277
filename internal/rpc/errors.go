package rpc

import "bt-go/internal/errs"

// sentinelForKind reverses the agent's error-kind string so a client-side
// errors.Is check against a catalog/store sentinel works the same whether
// the call was local or went over the wire. The kind strings mirror the
// agent's own errorKind mapping.
func sentinelForKind(kind string) error {
	switch kind {
	case "PathEscape":
		return errs.ErrPathEscape
	case "NotFound":
		return errs.ErrNotFound
	case "AuthFailure":
		return errs.ErrAuthFailure
	case "MalformedRecord":
		return errs.ErrMalformedRecord
	case "HashMismatch":
		return errs.ErrHashMismatch
	case "MissingBlock":
		return errs.ErrMissingBlock
	case "CatalogConflict":
		return errs.ErrCatalogConflict
	case "Transport":
		return errs.ErrTransport
	case "IntegrityViolation":
		return errs.ErrIntegrityViolation
	default:
		return nil
	}
}
