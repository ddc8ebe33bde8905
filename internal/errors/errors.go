// Package errors provides the error codes used across the text tools server
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of failure
type ErrorCode int

const (
	// Generic errors
	Unknown ErrorCode = -1
	None    ErrorCode = 0

	// Protocol errors (1-999)
	ParseError     ErrorCode = 1
	InvalidRequest ErrorCode = 2
	MethodNotFound ErrorCode = 3
	InvalidParams  ErrorCode = 4
	InternalError  ErrorCode = 5
	TransportError ErrorCode = 6
	SessionError   ErrorCode = 7

	// Tool errors (3000-3999).
	// UnknownTool is the only hard failure: it surfaces as a JSON-RPC error.
	// The rest are soft failures reported inside the tool result envelope.
	UnknownTool   ErrorCode = 3000
	InvalidType   ErrorCode = 3001
	InputTooLarge ErrorCode = 3002
	ToolTimeout   ErrorCode = 3003
	InternalFault ErrorCode = 3004
)

// Error carries an error code alongside the message
type Error struct {
	Code    ErrorCode
	Message string
	Details interface{}
	cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap implements the unwrapping interface
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new coded error
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new coded error with format
func NewErrorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// WithCause adds a causal error
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Is checks if an error matches a target
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error is of a certain type and converts it
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap extracts the causal error
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// IsCode checks if an error is a coded error with the given code
func IsCode(err error, code ErrorCode) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, or Unknown for uncoded errors
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return Unknown
}
