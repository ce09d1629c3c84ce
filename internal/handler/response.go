package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// WriteJSON writes data as the JSON response body with the given
// status. Decimal quantities and prices travel as strings; no handler
// ever puts a float on the wire.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // headers are already sent, nothing left to report
}

// errorResponse is the error envelope every endpoint shares. Error is a
// stable machine-readable code (validation_error, order_not_found,
// already_claimed, ...); Message is for humans and may change.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

var errMalformedBody = errors.New("request body must be valid JSON with only the documented fields")

// ParseJSON decodes the request body into v, rejecting unknown fields
// so typos surface as 400s instead of silently dropped input. The
// Content-Type check happens once, in the contentTypeJSON middleware,
// before any handler runs.
func ParseJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}
