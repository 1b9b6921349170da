// Package apperr defines the error kinds shared by the ledger, the checker and the
// bench classifier. Callers match kinds with errors.Is and read the reason from Error().
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrAccessDenied      = errors.New("access denied")
	ErrNotFound          = errors.New("not found")
	ErrEditWindowExpired = errors.New("edit window expired")
	ErrStorage           = errors.New("storage error")
)

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func AccessDenied(format string, args ...any) error {
	return wrap(ErrAccessDenied, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func EditWindowExpired(format string, args ...any) error {
	return wrap(ErrEditWindowExpired, format, args...)
}

// Storage wraps a persistence failure. Errors that already carry a kind are returned as is,
// so a NotFound raised inside a transaction is not reclassified on the way out.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Kind returns the sentinel kind carried by err, or nil for untyped errors.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrAccessDenied, ErrNotFound, ErrEditWindowExpired, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
