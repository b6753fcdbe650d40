// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-fib.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the server.
var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrServerClosed     = errors.New("server closed")
	ErrAlreadyRunning   = errors.New("server already running")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeMalformedRequest
	ErrCodeOutOfRange
	ErrCodeClosed
	ErrCodeInternal
)

// sentinel maps a code to the sentinel error it unwraps to.
func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeMalformedRequest:
		return ErrMalformedRequest
	case ErrCodeOutOfRange:
		return ErrIndexOutOfRange
	case ErrCodeClosed:
		return ErrServerClosed
	default:
		return nil
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the sentinel error for errors.Is.
func (e *Error) Unwrap() error {
	return e.Code.sentinel()
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, ErrMalformedRequest):
		return ErrCodeMalformedRequest
	case errors.Is(err, ErrIndexOutOfRange):
		return ErrCodeOutOfRange
	case errors.Is(err, ErrServerClosed):
		return ErrCodeClosed
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	}
	return ErrCodeInternal
}
