package ir

import (
	"errors"
	"fmt"
)

// Code categorizes a rejected call. The code doubles as the outcome case
// recorded in the call log.
type Code string

const (
	// CodeOK is the outcome case of a successful call. Never carried by an Error.
	CodeOK Code = "Ok"

	CodeInvalidState           Code = "InvalidState"
	CodeUnauthorized           Code = "Unauthorized"
	CodeAlreadyVoted           Code = "AlreadyVoted"
	CodeAlreadyScheduled       Code = "AlreadyScheduled"
	CodeAlreadyReleased        Code = "AlreadyReleased"
	CodeNotReady               Code = "NotReady"
	CodePredecessorNotExecuted Code = "PredecessorNotExecuted"
	CodeNotFound               Code = "NotFound"
	CodeThresholdNotMet        Code = "ThresholdNotMet"

	// CodeInvalidArgument covers malformed input: bad calldata, mismatched
	// batch arrays, unknown support values, future block lookups.
	CodeInvalidArgument Code = "InvalidArgument"

	// CodeInsufficientBalance is a token or native transfer above the balance.
	CodeInsufficientBalance Code = "InsufficientBalance"

	// CodeInternal marks storage or encoding failures, not caller mistakes.
	CodeInternal Code = "Internal"
)

// Sentinels for errors.Is comparisons; they match any Error with the same code.
var (
	ErrInvalidState           = &Error{Code: CodeInvalidState}
	ErrUnauthorized           = &Error{Code: CodeUnauthorized}
	ErrAlreadyVoted           = &Error{Code: CodeAlreadyVoted}
	ErrAlreadyScheduled       = &Error{Code: CodeAlreadyScheduled}
	ErrAlreadyReleased        = &Error{Code: CodeAlreadyReleased}
	ErrNotReady               = &Error{Code: CodeNotReady}
	ErrPredecessorNotExecuted = &Error{Code: CodePredecessorNotExecuted}
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrThresholdNotMet        = &Error{Code: CodeThresholdNotMet}
	ErrInvalidArgument        = &Error{Code: CodeInvalidArgument}
	ErrInsufficientBalance    = &Error{Code: CodeInsufficientBalance}
)

// Error is a rejected call. It is reported to the caller synchronously and
// never retried by the ledger.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details contains additional context (ids, block numbers).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so wrapped errors compare
// against the package sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e with one detail added.
func (e *Error) With(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the outcome case for err: CodeOK for nil, the Error code
// when err wraps an *Error, CodeInternal otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
