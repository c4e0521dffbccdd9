// Package xerr defines the node's error taxonomy. Each Kind carries a
// stable wire tag (see wire.ErrorTag) so request handlers can turn an
// internal failure into the right protocol-level Error response without
// string matching.
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for wire propagation and logging, per
// spec.md §7.
type Kind int

const (
	// KindIO covers decode/encode and storage I/O failures; connection-level.
	KindIO Kind = iota
	// KindBytesRemaining is trailing bytes after a fully decoded request.
	KindBytesRemaining
	// KindInvalidRequest is a semantically ill-formed request.
	KindInvalidRequest
	// KindInvalidHeight is a reference to an absent block/height.
	KindInvalidHeight
	// KindTxValidation wraps a structured transaction-verification failure.
	KindTxValidation
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "Io"
	case KindBytesRemaining:
		return "BytesRemaining"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindInvalidHeight:
		return "InvalidHeight"
	case KindTxValidation:
		return "TxValidation"
	default:
		return "Unknown"
	}
}

// Error is the node's single error type: a stable Kind plus a wrapped
// cause. The cause is attached with github.com/pkg/errors so callers that
// need a stack trace for logging can still get one via errors.Cause,
// mirroring the one retrieved use of pkg/errors in the teacher
// (node/service.go).
type Error struct {
	Kind   Kind
	Reason string // sub-reason, e.g. "InsufficientBalance" for TxValidation
	cause  error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches cause to a new Error of the given kind, preserving a
// traceable stack via pkg/errors.
func Wrap(kind Kind, cause error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, cause: errors.WithStack(cause)}
}

// Io is a convenience constructor for the common I/O-failure case.
func Io(cause error) *Error {
	return Wrap(KindIO, cause, "")
}

// TxValidation builds a structured transaction-validation failure.
func TxValidation(reason string) *Error {
	return New(KindTxValidation, reason)
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
