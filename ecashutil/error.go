// Package ecashutil holds types shared across the protocol, storage, and
// transport layers that don't belong to any single one of them.
package ecashutil

import (
	"fmt"
	"net/http"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies a domain error so that transport-layer code (api) can map
// it to an HTTP status without each handler re-deriving the mapping.
type Kind int

const (
	// KindInternal is an unexpected failure: a bug, or a dependency
	// (database, cache) being unreachable.
	KindInternal Kind = iota
	KindInvalidDenomination
	KindInvalidRequest
	KindInvalidSignature
	KindTokenExpired
	KindTokenAlreadySpent
	KindCrypto
	KindNotFound
)

// Error is the domain error type used throughout ecash. It always carries a
// Kind so callers several layers removed from where it was raised can still
// decide what to do with it.
type Error struct {
	Kind Kind
	msg  string
	// stack is populated only for KindInternal, where a stack trace is
	// worth the cost of capturing it.
	stack *goerrors.Error
}

func (e *Error) Error() string {
	if e.stack != nil {
		return e.msg + ": " + e.stack.Err.Error()
	}
	return e.msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped stack error.
func (e *Error) Unwrap() error {
	if e.stack == nil {
		return nil
	}
	return e.stack.Err
}

// New builds a plain domain error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap captures err as an KindInternal error with a stack trace attached,
// for logging at the point it's first observed.
func Wrap(err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  KindInternal,
		msg:   fmt.Sprintf(format, args...),
		stack: goerrors.Wrap(err, 1),
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}

// String gives each Kind a short, stable label suitable for a metrics
// tag — unlike Error(), it never carries request-specific detail.
func (k Kind) String() string {
	switch k {
	case KindInvalidDenomination:
		return "invalid_denomination"
	case KindInvalidRequest:
		return "invalid_request"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenAlreadySpent:
		return "token_already_spent"
	case KindCrypto:
		return "crypto"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to the status code the endpoint table in spec.md
// §4.9/§7 prescribes.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidDenomination, KindInvalidRequest, KindInvalidSignature,
		KindTokenExpired, KindCrypto:
		return http.StatusBadRequest
	case KindTokenAlreadySpent:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrInvalidDenomination = New(KindInvalidDenomination, "denomination not accepted")
	ErrInvalidRequest      = New(KindInvalidRequest, "malformed request")
	ErrInvalidSignature    = New(KindInvalidSignature, "signature verification failed")
	ErrTokenExpired        = New(KindTokenExpired, "token has expired")
	ErrTokenAlreadySpent   = New(KindTokenAlreadySpent, "token already spent")
	ErrProtocolMismatch    = New(KindInvalidRequest, "blind signature and metadata counts differ")
	ErrBlindingFailed      = New(KindCrypto, "failed to produce a blinding factor")
)
