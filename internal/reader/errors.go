// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reader

import (
	"errors"
	"fmt"
)

// Kind classifies a retrieval failure.
type Kind int

const (
	Internal Kind = iota
	NotFound
	FetchFailure
	ConversionFailure
	AuthorizationFailure
	ValidationFailure
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	NotFound:             "not_found",
	FetchFailure:         "fetch_failure",
	ConversionFailure:    "conversion_failure",
	AuthorizationFailure: "authorization_failure",
	ValidationFailure:    "validation_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by Service methods. Err carries the component error,
// which keeps its sentinel (acquire.ErrFetchFailed, convert.ErrConversionFailed, ...).
type Error struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func newError(kind Kind, id string, err error) *Error {
	return &Error{Kind: kind, ID: id, Err: err}
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: ValidationFailure, Err: fmt.Errorf(format, args...)}
}
