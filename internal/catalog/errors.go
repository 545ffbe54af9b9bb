package catalog

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned by a KeyedReader when no record carries the requested id.
var ErrRecordNotFound = errors.New("record not found")

// ConfigurationError reports a survey handle that cannot be resolved to data on disk.
type ConfigurationError struct {
	Survey string
	Reason string
	cause  error
}

func (e *ConfigurationError) Error() string {
	if e.Survey == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error for survey %q: %s", e.Survey, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// InputError reports a catalog that cannot be matched, typically because a
// required position column is missing or columns are not row aligned.
type InputError struct {
	Survey string
	Column string
	Reason string
	cause  error
}

func (e *InputError) Error() string {
	msg := "input error"
	if e.Survey != "" {
		msg += fmt.Sprintf(" in survey %q", e.Survey)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %s)", e.Column)
	}
	return msg + ": " + e.Reason
}

func (e *InputError) Unwrap() error { return e.cause }

func newInputError(survey, column, reason string, cause error) *InputError {
	return &InputError{Survey: survey, Column: column, Reason: reason, cause: cause}
}
