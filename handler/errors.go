package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler returned nil response")

// HTTPError is an error carrying the status code and the client-facing
// message written to the response body.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// NewHTTPError wraps err with a status code. The message defaults to
// err.Error(), or the status text when err is nil.
func NewHTTPError(code int, err error) HTTPError {
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	return HTTPError{Code: code, Message: msg, Err: err}
}

func (e HTTPError) Error() string { return e.Message }

func (e HTTPError) Unwrap() error { return e.Err }

var (
	ErrBadRequest         = HTTPError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized       = HTTPError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrNotFound           = HTTPError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer     = HTTPError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrServiceUnavailable = HTTPError{Code: http.StatusServiceUnavailable, Message: "service unavailable"}
)

// statusOf returns the HTTP status and client message for err. Errors that
// are not an HTTPError become a generic 500 so internal details never leak.
func statusOf(err error) (int, string) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, httpErr.Message
	}
	return ErrInternalServer.Code, ErrInternalServer.Message
}
