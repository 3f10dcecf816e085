package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caseguard/caseguard/pkg/codec"
	"github.com/caseguard/caseguard/pkg/dimension"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/risk"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var p ProblemDetail
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, "Conflict", "already settled")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	p := decodeProblem(t, rec)
	if p.Status != http.StatusConflict || p.Title != "Conflict" || p.Detail != "already settled" {
		t.Fatalf("unexpected problem %+v", p)
	}
	if p.Type != "https://caseguard.dev/errors/409" {
		t.Fatalf("unexpected type URI %q", p.Type)
	}
}

func TestWriteInternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternal(rec, errors.New("pq: connection refused"))
	p := decodeProblem(t, rec)
	if p.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", p.Status)
	}
	if p.Detail == "pq: connection refused" {
		t.Fatal("internal error detail must not leak to the client")
	}
}

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"veto", &hooks.VetoError{Gate: "policy", Event: hooks.EventFlagAccepted, Criteria: []string{"needs_note"}}, http.StatusForbidden},
		{"invalid transition", &risk.InvalidTransitionError{Op: "resolve", From: risk.StatusResolved}, http.StatusConflict},
		{"duplicate key", &dimension.DuplicateKeyError{Key: "LEGAL_IP"}, http.StatusConflict},
		{"unknown dimension", &dimension.UnknownDimensionError{Key: "NOPE"}, http.StatusNotFound},
		{"serialization", &codec.SerializationError{Field: "flags[0].level", Reason: "unknown"}, http.StatusBadRequest},
		{"wrapped veto", fmt.Errorf("accept: %w", &hooks.VetoError{Gate: "g"}), http.StatusForbidden},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
