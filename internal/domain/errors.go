package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCustomerNotFound means no stored record matches the queried name.
	// It is an expected outcome, not a failure.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrSchemaMismatch means the classifier's expected features are
	// unavailable or cannot be satisfied by the record.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnknownCategory means a categorical value was not part of the
	// encoder's training vocabulary.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrScoring means the classifier invocation failed.
	ErrScoring = errors.New("scoring error")

	// ErrArtifactLoad means a classifier or encoder artifact is missing or corrupt.
	ErrArtifactLoad = errors.New("artifact load error")

	// ErrInvalidRecord means a stored document could not be read as a customer record.
	ErrInvalidRecord = errors.New("invalid customer record")

	// ErrNotFound means a recorded lookup or other stored row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput means a request or configuration value was rejected.
	ErrInvalidInput = errors.New("invalid input")
)

// UnknownCategoryError identifies the offending column and value.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for %s", e.Value, e.Column)
}

// Is lets errors.Is match ErrUnknownCategory.
func (e *UnknownCategoryError) Is(target error) bool {
	return target == ErrUnknownCategory
}

// Error kinds reported to API clients and bus consumers.
const (
	KindNotFound        = "not_found"
	KindSchemaMismatch  = "schema_mismatch"
	KindUnknownCategory = "unknown_category"
	KindScoring         = "scoring_error"
	KindArtifactLoad    = "artifact_load_error"
	KindInvalidRecord   = "invalid_record"
	KindInvalidInput    = "invalid_input"
	KindInternal        = "internal"
)

// ErrorKind maps an error to a stable kind string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCustomerNotFound), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnknownCategory):
		return KindUnknownCategory
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, ErrScoring):
		return KindScoring
	case errors.Is(err, ErrArtifactLoad):
		return KindArtifactLoad
	case errors.Is(err, ErrInvalidRecord):
		return KindInvalidRecord
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
