// Package errs provides the error type returned across s3storage.
//
// Backend drivers translate their native errors into *errs.Error so that the
// filesystem layer and its callers can tell "entry absent" from "no
// permission" from "transport failure" without importing driver packages.
//
//	if errs.IsAccessDenied(err) {
//	    // credentials lack permission on the bucket or key
//	}
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises an error.
type Kind int

const (
	KindUnknown       Kind = iota
	KindConfiguration      // a required setting is missing or malformed
	KindNotFound           // no object, no directory, no bucket
	KindAccessDenied       // the store rejected the request for authorization
	KindIO                 // any other transport or store failure
	KindUsage              // operation invoked in the wrong lifecycle state
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	case KindIO:
		return "io"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by s3storage packages.
type Error struct {
	Kind    Kind
	Message string
	Paths   []string // offending paths or keys, when known
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Paths) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Paths, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string, paths ...string) *Error {
	return &Error{Kind: kind, Message: msg, Paths: paths}
}

// Wrap creates an *Error with the given kind, message and underlying cause.
func Wrap(kind Kind, msg string, cause error, paths ...string) *Error {
	return &Error{Kind: kind, Message: msg, Paths: paths, Cause: cause}
}

// WithPaths re-labels err with the caller's paths while keeping its kind.
// Errors that are not *Error become KindIO.
func WithPaths(err error, msg string, paths ...string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Message: msg, Paths: paths, Cause: err}
}

// --- Predicates ---

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	return kindOf(err) == KindConfiguration
}

// IsNotFound reports whether err represents a missing object or path.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsAccessDenied reports whether the store refused the request for authorization.
func IsAccessDenied(err error) bool {
	return kindOf(err) == KindAccessDenied
}

// IsIO reports whether err is a generic transport or store failure.
func IsIO(err error) bool {
	return kindOf(err) == KindIO
}

// IsUsage reports whether err was caused by calling an operation in the wrong state.
func IsUsage(err error) bool {
	return kindOf(err) == KindUsage
}

// KindOf returns the kind of the first *Error in the chain, or KindIO for
// any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if k := kindOf(err); k != KindUnknown {
		return k
	}
	return KindIO
}

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
