// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed error taxonomy of the BDI bridge.
//
// Every failure the bridge reports carries an ErrorCode so callers can decide
// between recovering locally (parse and configuration problems) and letting
// the owning agent task terminate (protocol and engine problems).
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies bridge errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeParse indicates a textual term payload could not be decoded.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeProtocol indicates an inbound message used an unknown illocutionary force.
	CodeProtocol ErrorCode = "PROTOCOL_ERROR"

	// CodeConfiguration indicates the agent program could not be loaded.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeEngine indicates the reasoning engine failed during step or call.
	CodeEngine ErrorCode = "ENGINE_ERROR"

	// CodeTransport indicates the messaging substrate failed to deliver.
	CodeTransport ErrorCode = "TRANSPORT_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Sentinels for errors.Is comparisons. Matching is done on the code only.
var (
	ErrParse         = &BridgeError{Code: CodeParse}
	ErrProtocol      = &BridgeError{Code: CodeProtocol}
	ErrConfiguration = &BridgeError{Code: CodeConfiguration}
	ErrEngine        = &BridgeError{Code: CodeEngine}
	ErrTransport     = &BridgeError{Code: CodeTransport}
	ErrNotFound      = &BridgeError{Code: CodeNotFound}
	ErrInvalidInput  = &BridgeError{Code: CodeInvalidInput}
	ErrTimeout       = &BridgeError{Code: CodeTimeout}
)

// BridgeError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type BridgeError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *BridgeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BridgeError with the same code.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *BridgeError) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		Context     map[string]interface{} `json:"context,omitempty"`
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         cause,
		Recoverable: e.Recoverable,
		Context:     e.Context,
	})
}

// New creates a new BridgeError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *BridgeError {
	return &BridgeError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: defaultRecoverable(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...any) *BridgeError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *BridgeError) WithContext(key string, value interface{}) *BridgeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *BridgeError) WithRecoverable(recoverable bool) *BridgeError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *BridgeError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsBridgeError attempts to convert an error to a BridgeError.
// Returns the error as BridgeError if it is one, or wraps it otherwise.
func AsBridgeError(err error) *BridgeError {
	if err == nil {
		return nil
	}
	var be *BridgeError
	if stderrors.As(err, &be) {
		return be
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsBridgeError(err).Code
}

// Is is re-exported so callers need a single errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is re-exported so callers need a single errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Parse, configuration and transport failures are handled where they occur;
// protocol and engine failures terminate the cycle that raised them.
func defaultRecoverable(code ErrorCode) bool {
	switch code {
	case CodeParse, CodeConfiguration, CodeTransport, CodeTimeout:
		return true
	default:
		return false
	}
}
