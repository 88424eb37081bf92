// Package errs carries typed application errors that map onto HTTP statuses.
package errs

import (
	"errors"   // Error unwrapping
	"net/http" // HTTP status codes
)

// Kind groups errors by how callers should react to them
type Kind int

const (
	KindInternal    Kind = iota // Unclassified failure
	KindValidation              // Bad input
	KindNotFound                // Missing or not visible to the caller
	KindForbidden               // Authenticated but not allowed
	KindConflict                // Valid input that clashes with current state
	KindUpstream                // Payment gateway or other remote failure
	KindPersistence             // Database failure
)

// Machine readable error codes
const (
	CodeInvalidInput        = "invalid_input"
	CodeInvalidItem         = "invalid_item"
	CodeRestaurantNotFound  = "restaurant_not_found"
	CodeInvalidStatus       = "invalid_status"
	CodeInvalidTransition   = "invalid_transition"
	CodeStaleOrder          = "stale_order"
	CodeOrderNotFound       = "order_not_found"
	CodeAmountMismatch      = "amount_mismatch"
	CodeAlreadyPaid         = "already_paid"
	CodeTransactionNotFound = "transaction_not_found"
	CodeNotEligible         = "not_eligible"
	CodeGateway             = "gateway_error"
	CodePersistence         = "persistence_error"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeMockDisabled        = "mock_disabled"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeEmailTaken          = "email_taken"
	CodeInternal            = "internal_error"
)

// Error is the application error type returned by services
type Error struct {
	Kind    Kind           // Category
	Code    string         // Machine readable code
	Message string         // Human readable message
	Fields  map[string]any // Offending fields, e.g. dishId
	Err     error          // Wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a field to the error and returns it
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[key] = value
	return e
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error { return newErr(KindValidation, code, msg) }
func NotFound(code, msg string) *Error   { return newErr(KindNotFound, code, msg) }
func Forbidden(msg string) *Error        { return newErr(KindForbidden, CodeForbidden, msg) }
func Conflict(code, msg string) *Error   { return newErr(KindConflict, code, msg) }

// Upstream wraps a remote failure
func Upstream(msg string, err error) *Error {
	e := newErr(KindUpstream, CodeGateway, msg)
	e.Err = err
	return e
}

// Persistence wraps a database failure
func Persistence(msg string, err error) *Error {
	e := newErr(KindPersistence, CodePersistence, msg)
	e.Err = err
	return e
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when untyped
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeInternal when untyped
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps err onto a response status
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
