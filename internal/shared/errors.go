package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input, rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrInvariant indicates an operation that would break a currency, sign or
	// stock rule. Nothing is written.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotFound indicates a referenced party, item or entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a competing writer changed the entity between read
	// and commit. Callers should retry the whole operation.
	ErrConflict = errors.New("concurrency conflict")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// Invariantf wraps ErrInvariant with a formatted message.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...)
}

// UserSafeMessage maps core errors to messages safe to show to an operator.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrInvariant):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "the referenced record does not exist"
	case errors.Is(err, ErrConflict):
		return "the record was changed by another operation, please retry"
	default:
		return "internal error"
	}
}
