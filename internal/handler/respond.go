package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sommetlabs/sommet/internal/domain"
)

// maxRequestBytes caps JSON request bodies. Board documents are the largest
// legitimate payload and they are capped separately at the service layer.
const maxRequestBytes = 1 << 20 // 1 MB

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// decodeJSON decodes a JSON request body into dst, rejecting unknown fields
// and oversized bodies.
func decodeJSON(r *http.Request, dst any) error {
	const op = "handler.decode"

	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return domain.Invalid(op, "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}

	// A second document in the body means the request is malformed.
	if dec.More() {
		return domain.Invalid(op, "Request body must contain a single JSON object")
	}

	return nil
}
