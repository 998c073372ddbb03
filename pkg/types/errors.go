package types

import "errors"

// Resolution error taxonomy. Only ErrStorage on the primary read path is
// returned to callers of Resolve; every other kind degrades the result.
var (
	// ErrInput marks a query with no usable field
	ErrInput = errors.New("query has no usable field")
	// ErrProvider marks an embedding provider failure or timeout
	ErrProvider = errors.New("embedding provider unavailable")
	// ErrOracle marks an arbitration oracle failure, timeout or malformed response
	ErrOracle = errors.New("arbitration oracle unavailable")
	// ErrStorage marks a registry read failure
	ErrStorage = errors.New("registry unavailable")
	// ErrRecorder marks a verification write failure
	ErrRecorder = errors.New("verification write failed")
)

// Entry validation errors
var (
	ErrMissingID       = errors.New("entry ID is required")
	ErrMissingName     = errors.New("entry name is required")
	ErrInvalidKind     = errors.New("entry kind must be customer or contact")
	ErrInvalidScore    = errors.New("confidence must be between 0 and 1")
	ErrUnknownMethod   = errors.New("unknown match method")
	ErrMissingIdentity = errors.New("matched result requires an identifier")
)
