// Package errors defines the engine's error taxonomy. Every failure the
// protocol dispatcher surfaces to a client carries one of these Kinds,
// and the wire message embeds the kind so a log grep can distinguish
// "file not found" from "bad regex" without parsing prose.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind identifies the error taxonomy member from spec §7.
type Kind string

const (
	KindPathNotAbsolute     Kind = "PathNotAbsolute"
	KindIoError             Kind = "IoError"
	KindNoSessionOpen       Kind = "NoSessionOpen"
	KindInvalidRegex        Kind = "InvalidRegex"
	KindColumnCountMismatch Kind = "ColumnCountMismatch"
	KindMalformedCommand    Kind = "MalformedCommand"
	KindInternal            Kind = "Internal"
)

// Error is the concrete type every subsystem boundary in this module
// returns on failure. Build one with the constructors below rather than
// composing the struct by hand, so Kind and Message stay consistent.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is makes errors.Is(err, &Error{Kind: KindX}) match on Kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if stderrors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, msg string, underlying error) *Error {
	return &Error{Kind: kind, Message: msg, Underlying: underlying}
}

func PathNotAbsolute(path string) *Error {
	return newErr(KindPathNotAbsolute, fmt.Sprintf("path %q is not absolute", path), nil)
}

func IoError(op string, underlying error) *Error {
	return newErr(KindIoError, op, underlying)
}

func NoSessionOpen(command string) *Error {
	return newErr(KindNoSessionOpen, fmt.Sprintf("%s requires an open session", command), nil)
}

func InvalidRegex(pattern string, underlying error) *Error {
	return newErr(KindInvalidRegex, fmt.Sprintf("invalid pattern %q", pattern), underlying)
}

func ColumnCountMismatch(nbrColumns, groups int) *Error {
	return newErr(KindColumnCountMismatch,
		fmt.Sprintf("pattern has %d capturing groups, nbr_columns=%d", groups, nbrColumns), nil)
}

func MalformedCommand(reason string) *Error {
	return newErr(KindMalformedCommand, reason, nil)
}

func Internal(reason string) *Error {
	return newErr(KindInternal, reason, nil)
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, and
// KindInternal otherwise (including for a nil err). KindInternal should
// never occur for a valid client.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
