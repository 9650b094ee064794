package forms

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadySubmitted = errors.New("control already submitted")
	ErrSessionClosed    = errors.New("form session closed")
)

// SchemaError means the template's form structure cannot be used. It is
// terminal for the session; the UI shows MsgSchemaLoadFailed.
type SchemaError struct {
	Cause    error
	Problems []string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("invalid form structure: %v", e.Cause)
	case len(e.Problems) > 0:
		return "invalid form structure: " + strings.Join(e.Problems, "; ")
	default:
		return "invalid form structure"
	}
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// UserMessage is the text shown in place of the form.
func (e *SchemaError) UserMessage() string { return MsgSchemaLoadFailed }

// RecordDataError means a prior record's formData could not be decoded.
// Initialisation logs it and continues with defaults.
type RecordDataError struct {
	RecordID string
	Cause    error
}

func (e *RecordDataError) Error() string {
	return fmt.Sprintf("record %s: invalid formData: %v", e.RecordID, e.Cause)
}

func (e *RecordDataError) Unwrap() error { return e.Cause }

// ValidationFailedError is returned by Session.Submit when the form is incomplete.
type ValidationFailedError struct {
	Errors Errors
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("form validation failed: %d field errors", len(e.Errors))
}
