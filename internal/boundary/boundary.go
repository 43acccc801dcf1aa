// Package boundary classifies page failures into the three fallbacks the
// page can render: route errors, generic errors and unknown failures.
package boundary

import (
	"errors"
	"fmt"
	"net/http"
)

// RouteError is a structured failure carrying an HTTP status, its status
// text and an optional data payload shown to the user.
type RouteError struct {
	Status     int
	StatusText string
	Data       string
	Err        error
}

// NewRouteError builds a RouteError using the standard status text for status.
// err, if non-nil, is kept for errors.Is/As and logging.
func NewRouteError(status int, data string, err error) *RouteError {
	return &RouteError{
		Status:     status,
		StatusText: http.StatusText(status),
		Data:       data,
		Err:        err,
	}
}

func (e *RouteError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("%d %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.StatusText, e.Data)
}

func (e *RouteError) Unwrap() error {
	return e.Err
}

// Kind is the fallback category.
type Kind int

const (
	KindUnknown Kind = iota
	KindRoute
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindRoute:
		return "route_error"
	case KindGeneric:
		return "error"
	default:
		return "unknown"
	}
}

// Fallback is the classified failure handed to the renderer.
type Fallback struct {
	Kind       Kind
	Status     int
	StatusText string
	Data       string
	Message    string
	Err        error
}

// Classify maps a failure value to a Fallback. v is usually an error, but may
// be any value recovered from a panic. Route errors are found anywhere in the
// wrap chain.
func Classify(v any) Fallback {
	err, ok := v.(error)
	if !ok || err == nil {
		return Fallback{Kind: KindUnknown, Status: http.StatusInternalServerError}
	}
	var re *RouteError
	if errors.As(err, &re) {
		return Fallback{
			Kind:       KindRoute,
			Status:     re.Status,
			StatusText: re.StatusText,
			Data:       re.Data,
			Err:        err,
		}
	}
	return Fallback{
		Kind:    KindGeneric,
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
		Err:     err,
	}
}
