package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context message.
// It preserves the original error for unwrapping with errors.Unwrap().
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WrapCoded wraps an error with a CodedError, preserving the original error as cause.
func WrapCoded(err error, module string, code uint32, message string, category ErrorCategory) error {
	if err == nil {
		return nil
	}
	return &CodedError{
		Module:   module,
		Code:     code,
		Message:  message,
		Category: category,
		Severity: SeverityError,
		Cause:    err,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns a new error with the given text.
func New(text string) error {
	return errors.New(text)
}
