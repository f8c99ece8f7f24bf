package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/nexusbilling/validation"
)

// ErrNotFound is wrapped by every lookup of a missing invoice or product.
var ErrNotFound = errors.New("not found")

// ValidationError reports rejected input. Nothing was persisted.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, c := range e.Violations {
		fields = append(fields, f+"="+c)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, code string) *ValidationError {
	return &ValidationError{Violations: validation.Violations{field: code}}
}

// StorageError wraps an unexpected persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err carries a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
