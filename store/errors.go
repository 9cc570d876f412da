package store

import (
	"errors"
	"fmt"
)

// ErrorType represents the failures synthesized by the store itself. Anything
// reported by the host is returned unchanged and is not an *Error.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeOpenFailed is returned when the host declines to open a database
	ErrorTypeOpenFailed
	// ErrorTypeNoResults is returned by SelectFirst on an empty result set
	ErrorTypeNoResults
)

// Error is a store-side failure with type information.
type Error struct {
	Type    ErrorType
	Message string
	Path    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

func newOpenFailedError(path string) *Error {
	return &Error{
		Type:    ErrorTypeOpenFailed,
		Message: fmt.Sprintf("Unable to open database %s.", path),
		Path:    path,
	}
}

func newNoResultsError(path string) *Error {
	return &Error{
		Type:    ErrorTypeNoResults,
		Message: "No results",
		Path:    path,
	}
}

// IsOpenFailed checks if the host refused to open the database
func IsOpenFailed(err error) bool {
	var sErr *Error
	return errors.As(err, &sErr) && sErr.IsType(ErrorTypeOpenFailed)
}

// IsNoResults checks if a SelectFirst found nothing
func IsNoResults(err error) bool {
	var sErr *Error
	return errors.As(err, &sErr) && sErr.IsType(ErrorTypeNoResults)
}
