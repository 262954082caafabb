package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openfab-labs/acs-core/internal/control"
	"github.com/openfab-labs/acs-core/internal/pairing"
	"github.com/openfab-labs/acs-core/internal/reader"
	"github.com/openfab-labs/acs-core/internal/transport"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeTransport    = "transport_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain sentinel errors onto HTTP responses.
// Unrecognised errors become a generic 500 so internals never leak.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reader.ErrNotFound):
		writeNotFound(w, "reader not found")
	case errors.Is(err, reader.ErrExists):
		writeConflict(w, err.Error())
	case errors.Is(err, reader.ErrInvalidName),
		errors.Is(err, reader.ErrInvalidSerial),
		errors.Is(err, reader.ErrInvalidState),
		errors.Is(err, reader.ErrInvalid):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, control.ErrStateNotCommandable):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, reader.ErrNotPaired),
		errors.Is(err, reader.ErrNotBound),
		errors.Is(err, control.ErrInUse),
		errors.Is(err, pairing.ErrTrustAnchorMissing):
		writeConflict(w, err.Error())
	case errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrPublishFailed):
		writeError(w, http.StatusBadGateway, ErrCodeTransport, "device transport unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
