// Package apperr defines the error kinds surfaced by the checkout core.
//
// Domain packages declare their own sentinel errors and wrap one of the
// kinds below with %w, so callers can classify any error with errors.Is
// or KindOf without knowing which package produced it.
package apperr

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrAuthenticity      = errors.New("payment authenticity check failed")
	ErrGateway           = errors.New("payment gateway error")
	ErrInternal          = errors.New("internal error")
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidState      Kind = "invalid_state"
	KindAuthenticity      Kind = "authenticity_error"
	KindGateway           Kind = "gateway_error"
	KindInternal          Kind = "internal_error"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrInsufficientStock, KindInsufficientStock},
	{ErrInvalidState, KindInvalidState},
	{ErrAuthenticity, KindAuthenticity},
	{ErrGateway, KindGateway},
	{ErrInternal, KindInternal},
}

// KindOf classifies err. Errors that wrap none of the kind sentinels are internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether a client may restage and retry after err.
func Retryable(err error) bool {
	return KindOf(err) == KindInsufficientStock
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error with message msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
