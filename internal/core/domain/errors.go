package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidArgument    ErrorKind = "invalid_argument"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyExists      ErrorKind = "already_exists"
	KindVersionConflict    ErrorKind = "version_conflict"
	KindInsufficientStock  ErrorKind = "insufficient_stock"
	KindInvalidState       ErrorKind = "invalid_state"
	KindDuplicateOperation ErrorKind = "duplicate_operation"
)

var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrVersionConflict    = &Error{Kind: KindVersionConflict}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrDuplicateOperation = &Error{Kind: KindDuplicateOperation}
)

// Error is a business rule failure. Current is set for version conflicts.
type Error struct {
	Kind    ErrorKind
	Message string
	Current *Article
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error with the same kind, so errors.Is(err, ErrNotFound) works
// for errors built with Errorf.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Conflict(current Article) *Error {
	return &Error{
		Kind:    KindVersionConflict,
		Message: fmt.Sprintf("article %d is at version %d", current.Sku, current.Version),
		Current: &current,
	}
}

// KindOf returns the business error kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
