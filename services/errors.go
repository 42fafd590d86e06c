package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies failures so handlers can map them to HTTP status codes.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by every service operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrPersistence = &Error{Kind: KindPersistence}
)

func notFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

func invalid(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// persistence wraps a driver error. Errors that are already typed pass through.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, err)
	}
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
