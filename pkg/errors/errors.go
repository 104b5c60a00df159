// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling for foodscout.
package errors

import (
	"encoding/json"
	"fmt"
)

// Code classifies foodscout errors for monitoring and recovery decisions.
type Code string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal Code = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeNotFound indicates a resource (product, task, session) was not found.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUpstream indicates the data source failed at the transport level.
	CodeUpstream Code = "UPSTREAM_ERROR"

	// CodeToolFailure indicates a tool execution failed.
	CodeToolFailure Code = "TOOL_FAILURE"

	// CodeLLMError indicates the text-generation backend failed.
	CodeLLMError Code = "LLM_ERROR"

	// CodeUnauthorized indicates the bearer check rejected the request.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout Code = "TIMEOUT"
)

// AgentError is a typed error carrying a classification code and an
// optional recoverable hint used by the retry layer.
type AgentError struct {
	Code        Code
	Message     string
	Err         error
	Recoverable bool
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code        string `json:"code"`
		Message     string `json:"message"`
		Cause       string `json:"cause,omitempty"`
		Recoverable bool   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		payload.Cause = e.Err.Error()
	}
	return json.Marshal(payload)
}

// New creates an AgentError with the given code, message, and cause.
func New(code Code, msg string, cause error) *AgentError {
	return &AgentError{Code: code, Message: msg, Err: cause}
}

// Newf creates an AgentError with a formatted message and no cause.
func Newf(code Code, format string, args ...any) *AgentError {
	return &AgentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithRecoverable sets whether the error can be retried. Returns the
// error for chaining.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// CodeOf extracts the classification code from an error chain, or
// CodeInternal when the chain carries no AgentError.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for e := err; e != nil; {
		if ae, ok := e.(*AgentError); ok {
			return ae.Code
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return CodeInternal
}

// Is reports whether the error chain contains an AgentError with the code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
