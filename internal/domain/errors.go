package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies recoverable tool failures. Every kind is
// reportable back to the language model; only startup configuration
// errors are fatal.
type FailureKind string

const (
	FailureUnknownTool        FailureKind = "UNKNOWN_TOOL"
	FailureInvalidArguments   FailureKind = "INVALID_ARGUMENTS"
	FailureNotFound           FailureKind = "NOT_FOUND"
	FailureAmbiguous          FailureKind = "AMBIGUOUS"
	FailureServiceUnavailable FailureKind = "SERVICE_UNAVAILABLE"
	FailureTimeout            FailureKind = "TIMEOUT"
	FailureHandlerError       FailureKind = "HANDLER_ERROR"
)

// Error is a classified error carried between handlers and the tool
// executor. Details optionally carries a structured payload to attach to
// the tool result (e.g. the candidate identities of an ambiguous match).
type Error struct {
	Kind    FailureKind
	Message string
	Details interface{}
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error.
func E(kind FailureKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind FailureKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind from an error, defaulting to
// HANDLER_ERROR for unclassified faults.
func KindOf(err error) FailureKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailureHandlerError
}

// DetailsOf extracts the structured details payload, if any.
func DetailsOf(err error) interface{} {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// SafeMessage returns a message suitable for surfacing to the model. For
// unclassified faults the original text is hidden so internal details do
// not leak into the conversation.
func SafeMessage(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "the tool failed unexpectedly"
}
