// Package errors provides SDK-specific error types for the Liminal API client.
//
// Every failure surfaced by the SDK is an *Error. Its Kind places it in the
// hierarchy LiminalError > RequestError > {AuthError, ModelInstanceUnknownError},
// and errors.Is against the package sentinels honors that hierarchy:
//
//	if errors.Is(err, sdkerrors.ErrRequest) { ... } // also true for auth errors
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	// KindLiminal is the root of the hierarchy.
	KindLiminal Kind = iota
	// KindRequest covers any failure in the transport/validation pipeline.
	KindRequest
	// KindAuth covers authentication or refresh failures, including attempts
	// made without the required material.
	KindAuth
	// KindModelInstanceUnknown is a model instance name that could not be
	// resolved to an active connection.
	KindModelInstanceUnknown
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "RequestError"
	case KindAuth:
		return "AuthError"
	case KindModelInstanceUnknown:
		return "ModelInstanceUnknownError"
	default:
		return "LiminalError"
	}
}

func (k Kind) parent() (Kind, bool) {
	switch k {
	case KindAuth, KindModelInstanceUnknown:
		return KindRequest, true
	case KindRequest:
		return KindLiminal, true
	default:
		return KindLiminal, false
	}
}

// IsA reports whether k equals ancestor or descends from it.
func (k Kind) IsA(ancestor Kind) bool {
	for {
		if k == ancestor {
			return true
		}
		p, ok := k.parent()
		if !ok {
			return false
		}
		k = p
	}
}

// Error represents an error returned by the Liminal SDK.
type Error struct {
	Kind       Kind           `json:"kind"`
	StatusCode int            `json:"status_code,omitempty"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

// Sentinels for errors.Is. They match any *Error whose Kind descends from
// theirs.
var (
	ErrLiminal              = &Error{Kind: KindLiminal, Message: "liminal error"}
	ErrRequest              = &Error{Kind: KindRequest, Message: "request error"}
	ErrAuth                 = &Error{Kind: KindAuth, Message: "auth error"}
	ErrModelInstanceUnknown = &Error{Kind: KindModelInstanceUnknown, Message: "model instance unknown"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 && e.Code != "" {
		return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind hierarchy.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrLiminal, ErrRequest, ErrAuth, ErrModelInstanceUnknown:
		return e.Kind.IsA(target.(*Error).Kind)
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Request creates a RequestError.
func Request(format string, args ...any) *Error {
	return New(KindRequest, format, args...)
}

// Auth creates an AuthError.
func Auth(format string, args ...any) *Error {
	return New(KindAuth, format, args...)
}

// ModelInstanceUnknown creates a ModelInstanceUnknownError for name.
func ModelInstanceUnknown(name string) *Error {
	return New(KindModelInstanceUnknown, "Unknown model instance name: %s", name)
}

// Validation wraps a decode or schema failure into a RequestError.
func Validation(cause error) *Error {
	return Wrap(KindRequest, cause, "Could not validate response: %v", cause)
}

// AsAuth reclassifies err as an AuthError, keeping the status and detail of
// an underlying *Error. A nil err stays nil.
func AsAuth(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		if e.Kind.IsA(KindAuth) {
			return err
		}
		return &Error{
			Kind:       KindAuth,
			StatusCode: e.StatusCode,
			Code:       e.Code,
			Message:    e.Message,
			Details:    e.Details,
			Err:        err,
		}
	}
	return Wrap(KindAuth, err, "%v", err)
}

func statusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsNotFound returns true if the error is a 404 Not Found error.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsForbidden returns true if the error is a 403 Forbidden error.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsUnauthorized returns true if the error is a 401 Unauthorized error.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsBadRequest returns true if the error is a 400 Bad Request error.
func IsBadRequest(err error) bool {
	return statusOf(err) == http.StatusBadRequest
}

// IsAuth returns true if the error is an AuthError.
func IsAuth(err error) bool {
	return stderrors.Is(err, ErrAuth)
}

// IsModelInstanceUnknown returns true if the error is a ModelInstanceUnknownError.
func IsModelInstanceUnknown(err error) bool {
	return stderrors.Is(err, ErrModelInstanceUnknown)
}

// ParseErrorResponse builds a RequestError from a non-2xx response body.
func ParseErrorResponse(url string, statusCode int, body []byte) *Error {
	e := &Error{Kind: KindRequest, StatusCode: statusCode}

	detail := strings.TrimSpace(string(body))

	// Liminal deployments answer with either {"error": "..."} or
	// {"error": {"code": ..., "message": ...}}; older ones with {"message": ...}.
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var text string
		var obj struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		}
		switch {
		case len(payload.Error) > 0 && json.Unmarshal(payload.Error, &text) == nil && text != "":
			detail = text
		case len(payload.Error) > 0 && json.Unmarshal(payload.Error, &obj) == nil && obj.Message != "":
			detail = obj.Message
			e.Code = obj.Code
			e.Details = obj.Details
		case payload.Message != "":
			detail = payload.Message
		}
	}

	if detail == "" {
		detail = http.StatusText(statusCode)
	}

	e.Message = fmt.Sprintf("Error while sending request to %s: %s", url, detail)
	return e
}
