package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes = 1 << 20
)

// ProblemDetail is an RFC7807 problem document.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, contentTypeJSON, status, data)
}

// Problem writes an RFC7807 response. Type is always about:blank since the
// title already carries the HTTP semantics.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	write(w, contentTypeProblem, status, ProblemDetail{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON reads a single JSON document from the request body into target.
// Unknown fields, trailing data and bodies over MaxBodyBytes are rejected.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return errors.New("httpx: empty body")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("httpx: decode body: %w", err)
	}
	if dec.More() {
		return errors.New("httpx: body must hold a single JSON value")
	}
	return nil
}

func write(w http.ResponseWriter, contentType string, status int, data any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
