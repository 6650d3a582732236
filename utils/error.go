package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects bad input before any transaction opens.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// SecurityError signals a policy problem (permission, back-dating), not a
// data problem. Callers surface it distinctly from validation failures.
type SecurityError struct {
	Msg string
}

func (e *SecurityError) Error() string { return e.Msg }

func NewSecurityError(msg string) error {
	return &SecurityError{Msg: msg}
}

// ConflictError names a uniqueness conflict (e.g. duplicate voucher number)
// so the caller can prompt for a different value instead of showing a
// generic failure.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func NewConflictError(msg string) error {
	return &ConflictError{Msg: msg}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsSecurity(err error) bool {
	var s *SecurityError
	return errors.As(err, &s)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
