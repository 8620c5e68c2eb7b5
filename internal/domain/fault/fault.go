// Package fault defines the error taxonomy shared by every command:
// a rejected command carries a Kind so callers can tell "not allowed"
// from "not possible right now" from "does not exist".
package fault

import "errors"

type Kind string

const (
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	// KindInvariant marks a programming bug. It is fatal for the
	// operation and must be logged, never swallowed.
	KindInvariant Kind = "invariant"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func PermissionDenied(msg string) *Error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Invariant(msg string) *Error {
	return &Error{Kind: KindInvariant, Message: msg}
}

// KindOf reports the Kind of err, unwrapping as needed. Errors outside
// the taxonomy are treated as invariant violations.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return KindInvariant
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
