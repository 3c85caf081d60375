// Package apperr defines the error taxonomy shared by the storefront domain
// packages. Every business rule failure is an *Error carrying a Kind, so the
// transport layer can map it to a status code without knowing which package
// produced it.
package apperr

import (
	"github.com/go-faster/errors"
)

// Kind classifies an error for callers and transports.
type Kind uint8

const (
	// Internal is the zero Kind, used for errors that carry no classification.
	Internal Kind = iota
	// NotFound indicates a missing product, variant, cart item, order or user.
	NotFound
	// InvalidArgument indicates malformed input such as a non-positive quantity
	// or an unknown order status.
	InvalidArgument
	// InsufficientStock indicates that the requested quantity exceeds the
	// available stock.
	InsufficientStock
	// InvalidStateTransition indicates an order status change that the
	// lifecycle does not allow.
	InvalidStateTransition
	// EmptyCart indicates a checkout attempt without cart items.
	EmptyCart
	// StoreFailure wraps an underlying persistence error. It is the only
	// retryable kind.
	StoreFailure
	// Unauthenticated indicates missing or invalid credentials.
	Unauthenticated
	// Forbidden indicates valid credentials lacking the required scope.
	Forbidden
)

var kindNames = [...]string{
	Internal:               "internal",
	NotFound:               "not_found",
	InvalidArgument:        "invalid_argument",
	InsufficientStock:      "insufficient_stock",
	InvalidStateTransition: "invalid_state_transition",
	EmptyCart:              "empty_cart",
	StoreFailure:           "store_failure",
	Unauthenticated:        "unauthenticated",
	Forbidden:              "forbidden",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[Internal]
}

// Retryable reports whether an operation failing with this kind may succeed
// when retried unmodified.
func (k Kind) Retryable() bool {
	return k == StoreFailure
}

// Error is a classified error with a human-readable message and an optional
// cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New returns an *Error of the given kind. Package-level sentinels are built
// with New and compared with errors.Is.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store wraps a persistence error as StoreFailure, naming the failed
// operation. Errors that are already classified pass through untouched so
// that sentinels returned by repositories keep their kind.
func Store(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: StoreFailure, Message: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the message of the first *Error in err's chain without its
// cause, which keeps storage details out of client responses.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
