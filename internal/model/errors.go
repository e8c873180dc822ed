package model

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy shared by the pipeline, store and orchestrator. Wrap these
// with eris.Wrap and classify with errors.Is.
var (
	// ErrGeneration marks a failed or malformed generation-service response.
	ErrGeneration = eris.New("generation error")
	// ErrStoreUnavailable marks a backing store that cannot be reached.
	ErrStoreUnavailable = eris.New("store unavailable")
	// ErrConstraintViolation marks invalid input such as an empty natural key.
	ErrConstraintViolation = eris.New("constraint violation")
	// ErrConfigurationMissing marks a missing job, config value or rule set.
	ErrConfigurationMissing = eris.New("configuration missing")
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = eris.New("not found")
)

// ErrorKind is the persisted classification of a failure.
type ErrorKind string

const (
	ErrorKindGeneration    ErrorKind = "generation"
	ErrorKindStore         ErrorKind = "store_unavailable"
	ErrorKindConstraint    ErrorKind = "constraint_violation"
	ErrorKindConfiguration ErrorKind = "configuration_missing"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// KindOf classifies err against the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return ErrorKindStore
	case errors.Is(err, ErrGeneration):
		return ErrorKindGeneration
	case errors.Is(err, ErrConstraintViolation):
		return ErrorKindConstraint
	case errors.Is(err, ErrConfigurationMissing):
		return ErrorKindConfiguration
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	default:
		return ErrorKindUnknown
	}
}
