// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and maps
// domain errors to status codes in one place.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardspend/internal/auth"
	"cardspend/internal/core"
	"cardspend/internal/localstate"
	applog "cardspend/internal/log"
	"cardspend/internal/report"
	"cardspend/internal/services"
	"cardspend/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

// errBadRequest marks malformed requests detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }
func (e requestError) Unwrap() error { return errBadRequest }

func badRequest(msg string) error { return requestError{msg: msg} }

// statusFor maps an error to its HTTP status and the message shown to the
// caller. The body carries the underlying message, server errors included.
func statusFor(err error) (int, string, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request body too large", applog.ErrorTypeTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, localstate.ErrIncompleteDocument),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusBadRequest, err.Error(), applog.ErrorTypeValidation
	case errors.Is(err, auth.ErrTokenMissing),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, err.Error(), applog.ErrorTypeAuth
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not found", applog.ErrorTypeNotFound
	case errors.Is(err, report.ErrNoData):
		return http.StatusNotFound, err.Error(), applog.ErrorTypeNotFound
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, err.Error(), applog.ErrorTypeConflict
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "already exists", applog.ErrorTypeConflict
	default:
		return http.StatusInternalServerError, err.Error(), applog.ErrorTypeInternal
	}
}

// writeError answers with the status mapped from err. Server errors are
// logged with the request-scoped logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, errType := statusFor(err)

	if status >= http.StatusInternalServerError {
		fields := applog.NewFields().WithErrorType(errType)
		fields[applog.FieldPath] = r.URL.Path
		requestLogs(r).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method, fields)
	}

	ErrorResponse(status, msg).Write(w)
}
