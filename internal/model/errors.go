package model

import "fmt"

// ValidationError reports a local pre-submit check that failed. The
// backend is never called when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Required builds the ValidationError for an empty mandatory field.
func Required(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// DecodeError reports a payload key whose value did not have the
// expected shape.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
