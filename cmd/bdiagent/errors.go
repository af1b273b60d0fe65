// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/kairos-bdi/pkg/errors"
)

// CLIError wraps a BridgeError with a hint for the operator.
type CLIError struct {
	*errors.BridgeError
	Hint string
}

func newCLIError(be *errors.BridgeError, hint string) *CLIError {
	return &CLIError{BridgeError: be, Hint: hint}
}

func (e *CLIError) Error() string {
	if e.BridgeError == nil {
		return "unknown error"
	}
	msg := e.BridgeError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

func (e *CLIError) Unwrap() error { return e.BridgeError }

func wrapConfigError(err error, path string) *CLIError {
	be := errors.AsBridgeError(err)
	hint := "check the configuration syntax"
	if path != "" {
		hint = fmt.Sprintf("check %s for syntax errors", path)
	}
	return newCLIError(be, hint)
}

func wrapProgramError(err error, path string) *CLIError {
	be := errors.AsBridgeError(err).WithContext("program", path)
	return newCLIError(be, "run 'bdiagent check "+path+"' for details")
}

func wrapSendError(err error, addr string) *CLIError {
	be := errors.AsBridgeError(err)
	hint := "check that the recipient is running"
	if addr != "" {
		hint = fmt.Sprintf("check that an agent host listens on %s", addr)
	}
	return newCLIError(be, hint)
}

func invalidArgument(arg, reason string) *CLIError {
	be := errors.Newf(errors.CodeInvalidInput, "invalid argument: %s", reason).
		WithContext("argument", arg).
		WithRecoverable(false)
	return newCLIError(be, "run 'bdiagent help' for usage information")
}

type errorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// printError writes err for humans or, with asJSON, as a single JSON line.
func printError(w io.Writer, err error, asJSON bool) {
	body := errorBody{Code: errors.CodeInternal, Message: err.Error()}
	var cli *CLIError
	var be *errors.BridgeError
	switch {
	case errors.As(err, &cli) && cli.BridgeError != nil:
		body = errorBody{Code: cli.Code, Message: cli.BridgeError.Error(), Hint: cli.Hint}
	case errors.As(err, &be):
		body = errorBody{Code: be.Code, Message: be.Error()}
	}

	if asJSON {
		data, _ := json.Marshal(map[string]errorBody{"error": body})
		fmt.Fprintln(w, string(data))
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", body.Code, body.Message)
	if body.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", body.Hint)
	}
}
