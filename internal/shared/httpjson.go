package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// WriteJSON renders v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteError maps core errors onto HTTP status codes. The body carries the
// error kind so the caller can decide whether to resubmit.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, ErrValidation):
		status, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, ErrInvariant):
		status, kind = http.StatusUnprocessableEntity, "invariant"
	case errors.Is(err, ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrIdempotencyConflict):
		status, kind = http.StatusConflict, "conflict"
	}
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", slog.Any("error", err))
	}
	WriteJSON(w, status, errorBody{Error: UserSafeMessage(err), Kind: kind})
}

// DecodeJSON parses a request body into dst, wrapping failures in ErrValidation.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return Validationf("malformed request body: %v", err)
	}
	return nil
}
