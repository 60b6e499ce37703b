// This file implements a small builder for the JSON API responses and the
// mapping from pipeline errors to HTTP statuses.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cuipo/internal/catalog"
	"cuipo/internal/dashboard"
	"cuipo/internal/derived"
	"cuipo/internal/present"
	"cuipo/internal/upstream"
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
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// emptyBody answers a selection for which the upstream has no rows.
type emptyBody struct {
	Empty   bool   `json:"empty"`
	Message string `json:"message"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// EmptyResponse creates the 200 answer for a selection without data.
func EmptyResponse() *JSONResponseBuilder {
	return NewJSONResponse().Body(emptyBody{Empty: true, Message: present.NoDataMessage})
}

// ResponseForError maps an operation error to its response: upstream
// failures are 502 with the fetch message, empty results are a 200 with the
// no-data notice, lookup misses are 404 and bad selections 422.
func ResponseForError(err error) *JSONResponseBuilder {
	var fe *upstream.FetchError
	switch {
	case errors.As(err, &fe):
		return ErrorResponse(http.StatusBadGateway, fe.Error())
	case errors.Is(err, dashboard.ErrNoData):
		return EmptyResponse()
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, derived.ErrLookupMiss):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrAmbiguous), errors.Is(err, dashboard.ErrInvalidSelection):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, dashboard.ErrUnknownOperation):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.Is(err, errBodyTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return ErrorResponse(http.StatusInternalServerError, "error interno")
	}
}
