package validation

import "fmt"

// ValidationFailedError marks a request or candidate value as rejected for a
// caller-correctable reason. Handlers translate it to a 400 response carrying
// the message.
type ValidationFailedError struct {
	message string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.message)
}

func (e *ValidationFailedError) Message() string {
	return e.message
}

func NewValidationFailedError(message string) error {
	return &ValidationFailedError{message: message}
}
