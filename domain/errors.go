package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error so that transports can map it to a status.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindDuplicate         Kind = "DUPLICATE_RESOURCE"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindBusinessRule      Kind = "BUSINESS_RULE_VIOLATION"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindUnauthorized      Kind = "UNAUTHORIZED"
)

// Error is the error type returned by every ledger and registry operation.
// Code is a stable machine readable identifier, Details carries context for
// the client (resource ids, balances, field messages).
type Error struct {
	Kind    Kind           `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Fields  []string       `json:"errors,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, domain.ErrNotFound) regardless of code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: "resource not found"}
	ErrDuplicate         = &Error{Kind: KindDuplicate, Code: "DUPLICATE_RESOURCE", Message: "resource already exists"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Code: "INSUFFICIENT_STOCK", Message: "insufficient stock"}
	ErrBusinessRule      = &Error{Kind: KindBusinessRule, Code: "BUSINESS_RULE_VIOLATION", Message: "business rule violated"}
	ErrValidation        = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "validation failed"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: "unauthorized"}
)

// NotFound builds a not-found error for the named resource.
func NotFound(resource string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    strings.ToUpper(strings.ReplaceAll(resource, " ", "_")) + "_NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v was not found", resource, id),
		Details: map[string]any{"resourceName": resource, "resourceId": id},
	}
}

// Duplicate builds a unique-key collision error.
func Duplicate(resource, field string, value any) *Error {
	return &Error{
		Kind:    KindDuplicate,
		Code:    "DUPLICATE_RESOURCE",
		Message: fmt.Sprintf("%s with %s '%v' already exists", resource, field, value),
		Details: map[string]any{"resourceName": resource, "fieldName": field, "fieldValue": value},
	}
}

// InsufficientStock reports that a decrease would drive a medicine below zero.
func InsufficientStock(medicine string, available, requested int64) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Code:    "INSUFFICIENT_STOCK",
		Message: fmt.Sprintf("insufficient stock for medicine %s. Available: %d, Requested: %d", medicine, available, requested),
		Details: map[string]any{"medicine": medicine, "available": available, "requested": requested},
	}
}

// BusinessRule reports a cross-field invariant violation.
func BusinessRule(code, message string, details map[string]any) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: message, Details: details}
}

// Validation reports a value outside its allowed set or range.
func Validation(code, message string, fields ...string) *Error {
	if len(fields) == 0 {
		fields = []string{message}
	}
	return &Error{Kind: KindValidation, Code: code, Message: message, Fields: fields}
}

// Unauthorized reports a failed authentication.
func Unauthorized(code, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
