package recommend

import (
	"errors"
	"fmt"
)

const (
	CodeValidation = "validation"
	CodeUpstream   = "upstream"
	CodeLookup     = "lookup"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal"
)

// Error is the failure type surfaced to callers. Lookup failures are never
// wrapped in one of these at the resolution level: a failed lookup drops the
// candidate and the resolution still succeeds.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return 400
	case CodeNotFound:
		return 404
	case CodeUpstream:
		return 502
	default:
		return 500
	}
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code), Err: err}
}

func NewValidationError(message string) error {
	return newError(CodeValidation, message, nil)
}

func NewUpstreamError(message string, err error) error {
	return newError(CodeUpstream, message, err)
}

func NewNotFoundError(message string) error {
	return newError(CodeNotFound, message, nil)
}

func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeValidation
}

// StageError tags a pipeline failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}
