package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by the codec, renderer and image cache.
var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidMetadata = errors.New("invalid metadata")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrCacheMiss       = errors.New("cache miss")
)

// Error wraps one of the kinds above with a client-facing message and an
// optional underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func InvalidToken(msg string, err error) *Error {
	return &Error{Kind: ErrInvalidToken, Message: msg, Err: err}
}

func InvalidMetadata(msg string) *Error {
	return &Error{Kind: ErrInvalidMetadata, Message: msg}
}

func AssetNotFound(name string, err error) *Error {
	return &Error{Kind: ErrAssetNotFound, Message: name, Err: err}
}

func CacheMiss(code string) *Error {
	return &Error{Kind: ErrCacheMiss, Message: code}
}

// StatusCode maps an error chain to the HTTP status the external layer
// should answer with.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ErrAssetNotFound), errors.Is(err, ErrCacheMiss):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Unknown errors are
// reported generically so internals do not leak.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind.Error() + ": " + appErr.Message
	}
	return "internal server error"
}
