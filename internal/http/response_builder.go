// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and maps the
// error taxonomy onto status codes. Error bodies carry the error kind only,
// never the error text.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"cifra/internal/core"
	"cifra/internal/log"
	"cifra/internal/session"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
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

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type statusBody struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func notReady() *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusServiceUnavailable).
		Header("Retry-After", "5").
		Body(statusBody{Status: "not_ready"})
}

// errorResponse maps err onto a status code and a kind-only body.
func errorResponse(ctx context.Context, logger *log.Logger, err error) *JSONResponseBuilder {
	status, body := classify(err)
	switch {
	case status == http.StatusServiceUnavailable:
		return notReady()
	case status >= 500:
		logger.ErrorContext(ctx, "Request failed",
			log.FieldErrorKind, body.Error,
			log.FieldError, err)
	default:
		logger.DebugContext(ctx, "Request rejected",
			log.FieldErrorKind, body.Error,
			log.FieldStatusCode, status)
	}
	return NewJSONResponse().Status(status).Body(body)
}

func classify(err error) (int, statusBody) {
	switch {
	case errors.Is(err, core.ErrKeyUnavailable):
		return http.StatusServiceUnavailable, statusBody{Status: "not_ready"}
	case errors.Is(err, core.ErrRawInputMissing):
		return http.StatusUnprocessableEntity, statusBody{Status: "unavailable"}
	case errors.Is(err, core.ErrInvalidKeyMaterial):
		return http.StatusBadRequest, statusBody{Status: "error", Error: core.KindInvalidKey}
	case errors.Is(err, session.ErrUnknownKind):
		return http.StatusBadRequest, statusBody{Status: "error", Error: "unknown_kind"}
	case errors.Is(err, session.ErrMalformedInput):
		return http.StatusBadRequest, statusBody{Status: "error", Error: "malformed_input"}
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, statusBody{Status: "error", Error: "bad_request"}
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge, statusBody{Status: "error", Error: "body_too_large"}
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, statusBody{Status: "superseded"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, statusBody{Status: "canceled"}
	default:
		return http.StatusInternalServerError, statusBody{Status: "error", Error: core.ErrorKind(err)}
	}
}
