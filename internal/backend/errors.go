package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed backend call
type Kind int

const (
	KindNetwork Kind = iota
	KindUnauthorized
	KindNotFound
	KindValidation
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "network"
	}
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrServer       = &Error{Kind: KindServer}
	ErrNetwork      = &Error{Kind: KindNetwork}
)

// Error is a classified backend failure. Detail is safe to show to the user.
type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Detail)
	}
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrUnauthorized) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Detail != "" {
		return be.Detail
	}
	return err.Error()
}

// IsUnauthorized reports whether err means the session is gone.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// NewValidation builds a local, pre-request validation error.
func NewValidation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindServer
	}
}
