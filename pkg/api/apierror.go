// Package api provides RFC 7807 Problem Detail error responses for the
// governance HTTP boundary.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caseguard/caseguard/pkg/codec"
	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance is a URI reference identifying the specific occurrence.
	Instance string `json:"instance,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	problem := &ProblemDetail{
		Type:   fmt.Sprintf("https://caseguard.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Operation vetoed by compliance gate"
	}
	WriteError(w, http.StatusForbidden, "Forbidden", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteConflict writes a 409 error response.
func WriteConflict(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusConflict, "Conflict", detail)
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but NEVER exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	// Log internally but never expose to client
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteDomainError maps the governance error taxonomy onto HTTP statuses:
// gate vetoes are 403, state-machine violations and key collisions 409,
// unknown dimensions 404, malformed documents 400, everything else 500.
func WriteDomainError(w http.ResponseWriter, err error) {
	var (
		veto       *hooks.VetoError
		transition *risk.InvalidTransitionError
		duplicate  *dimension.DuplicateKeyError
		unknown    *dimension.UnknownDimensionError
		serial     *codec.SerializationError
	)
	switch {
	case errors.As(err, &veto):
		WriteForbidden(w, veto.Error())
	case errors.As(err, &transition):
		WriteConflict(w, transition.Error())
	case errors.As(err, &duplicate):
		WriteConflict(w, duplicate.Error())
	case errors.As(err, &unknown):
		WriteNotFound(w, unknown.Error())
	case errors.As(err, &serial):
		WriteBadRequest(w, serial.Error())
	default:
		WriteInternal(w, err)
	}
}
