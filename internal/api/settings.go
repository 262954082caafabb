package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/settings"
)

// trustAnchorBody is the request and response body for the trust anchor
// endpoints.
type trustAnchorBody struct {
	TrustAnchor string `json:"trust_anchor"`
}

// handleGetTrustAnchor returns the configured trust anchor material.
func (s *Server) handleGetTrustAnchor(w http.ResponseWriter, r *http.Request) {
	anchor, err := s.settings.Get(r.Context(), settings.KeyTrustAnchor)
	if err != nil {
		if errors.Is(err, settings.ErrNotSet) {
			writeNotFound(w, "trust anchor not configured")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trustAnchorBody{TrustAnchor: anchor})
}

// handleSetTrustAnchor stores the trust anchor handed to readers at
// pairing. Changing it does not invalidate paired readers; they keep the
// anchor they were enrolled with until re-paired.
func (s *Server) handleSetTrustAnchor(w http.ResponseWriter, r *http.Request) {
	var req trustAnchorBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.TrustAnchor == "" {
		writeBadRequest(w, "trust_anchor is required")
		return
	}

	if err := s.settings.Set(r.Context(), settings.KeyTrustAnchor, req.TrustAnchor); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.recordAudit(r, audit.ActionTrustAnchor, "", nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}
