package domain

import (
	"errors"
	"fmt"
)

// ErrValidation wraps a domain-level invariant violation. It carries no
// transport semantics of its own because the domain package must not import
// transport concerns; callers at the service boundary classify it with
// IsValidation and map it to a fatal (non-retryable) failure.
type ErrValidation struct {
	msg string
}

func (e *ErrValidation) Error() string { return e.msg }

func errValidationf(format string, args ...interface{}) error {
	return &ErrValidation{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err (or anything it wraps) is a domain
// validation failure.
func IsValidation(err error) bool {
	var v *ErrValidation
	return errors.As(err, &v)
}
