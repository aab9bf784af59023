// Package apperr defines the error taxonomy shared by bot components.
// Every failure crossing a component boundary is converted to one of these
// kinds before it can reach the user.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for routing and user-facing messages.
type Kind string

const (
	// KindUsage marks a malformed user request (missing argument, empty query).
	KindUsage Kind = "usage"
	// KindValidation marks a rejected credential during setup.
	KindValidation Kind = "validation"
	// KindTransport marks a network failure against an external collaborator.
	KindTransport Kind = "transport"
	// KindNotConfigured marks an action attempted before setup completed.
	KindNotConfigured Kind = "not_configured"
	// KindTimeout marks an exhausted poll budget in the resolution engine.
	KindTimeout Kind = "timeout"
)

// Error carries a kind, a user-presentable message and an optional cause.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap builds an Error of the given kind preserving the underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

// Code returns an upper-cased kind identifier. The router logs it as err_code.
func (e *Error) Code() string {
	return strings.ToUpper(strings.ReplaceAll(string(e.kind), "-", "_"))
}

// Message returns the user-presentable part without the cause.
func (e *Error) Message() string { return e.msg }

// Usage builds a usage error with a formatted message.
func Usage(format string, args ...any) *Error {
	return New(KindUsage, fmt.Sprintf(format, args...))
}

// Validation builds a validation error preserving the cause when given.
func Validation(msg string, cause error) *Error {
	return Wrap(KindValidation, msg, cause)
}

// Transport builds a transport error preserving the cause.
func Transport(msg string, cause error) *Error {
	return Wrap(KindTransport, msg, cause)
}

// NotConfigured builds a precondition error for unconfigured sessions.
func NotConfigured() *Error {
	return New(KindNotConfigured, "please run /setup first")
}

// Timeout builds a poll-budget exhaustion error.
func Timeout(msg string) *Error {
	return New(KindTimeout, msg)
}

// IsKind reports whether err (or anything it wraps) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind == k
	}
	return false
}

// KindOf returns the kind of err, or empty when err is not an Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return ""
}
