package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/reader"
)

// readerView decorates a reader record with liveness flags for UI badges.
type readerView struct {
	*reader.Reader
	Online bool `json:"online"`
	Stale  bool `json:"stale"`
}

// viewOf builds the API representation of a reader.
func (s *Server) viewOf(rec *reader.Reader) readerView {
	return readerView{
		Reader: rec,
		Online: !s.monitor.IsOffline(rec.LastReportAt),
		Stale:  s.monitor.IsStale(rec.LastReportAt),
	}
}

// viewsOf builds API representations for a slice of readers.
func (s *Server) viewsOf(recs []reader.Reader) []readerView {
	views := make([]readerView, 0, len(recs))
	for i := range recs {
		views = append(views, s.viewOf(&recs[i]))
	}
	return views
}

// handleListReaders returns all readers, help-requesting readers first.
func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	recs, err := s.readers.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readers": s.viewsOf(recs),
		"count":   len(recs),
	})
}

// handleListUnbound returns paired readers with no equipment binding.
func (s *Server) handleListUnbound(w http.ResponseWriter, r *http.Request) {
	recs, err := s.readers.ListUnbound(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"readers": s.viewsOf(recs),
		"count":   len(recs),
	})
}

// handleGetReader returns a single reader by ID.
func (s *Server) handleGetReader(w http.ResponseWriter, r *http.Request) {
	rec, err := s.readers.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(rec))
}

// createReaderRequest is the request body for POST /readers.
type createReaderRequest struct {
	Name        string `json:"name"`
	EquipmentID string `json:"equipment_id"`
}

// handleCreateReader creates a shell reader record ahead of pairing. The
// row has no serial; the device attaches one when it first pairs.
func (s *Server) handleCreateReader(w http.ResponseWriter, r *http.Request) {
	var req createReaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	name := req.Name
	if name == "" {
		generated, err := reader.UniqueName(r.Context(), s.readers)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		name = generated
	} else if err := reader.ValidateName(name); err != nil {
		s.writeDomainError(w, err)
		return
	}

	rec := &reader.Reader{
		ID:             reader.GenerateID(),
		Name:           name,
		ReportedState:  reader.StateStartup,
		CommandedState: reader.StateIdle,
	}
	if req.EquipmentID != "" {
		rec.EquipmentID = &req.EquipmentID
	}

	if err := s.readers.Create(r.Context(), rec); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.recordAudit(r, audit.ActionCreate, rec.ID, map[string]any{"name": name})

	writeJSON(w, http.StatusCreated, s.viewOf(rec))
}

// pairRequest is the request body for POST /readers/pair.
type pairRequest struct {
	Serial string `json:"serial"`
}

// handlePairReader enrols a reader and returns its credential bundle.
// Every call advances the key cycle, so repeating a pair invalidates the
// previously issued key.
func (s *Server) handlePairReader(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cert, err := s.pairing.Pair(r.Context(), req.Serial, identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cert)
}

// setStateRequest is the request body for POST /readers/{id}/state.
type setStateRequest struct {
	State string `json:"state"`
	Force bool   `json:"force"`
}

// handleSetReaderState commands the reader to a new state.
func (s *Server) handleSetReaderState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.control.SetState(r.Context(), chi.URLParam(r, "id"),
		reader.State(req.State), req.Force, identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "commanded"})
}

// identifyRequest is the request body for POST /readers/{id}/identify.
type identifyRequest struct {
	On bool `json:"on"`
}

// handleIdentifyReader asks the reader to flash its locator indicator.
// The response reports whether the reader is currently online; an offline
// reader gets the message queued but won't blink until it reconnects.
func (s *Server) handleIdentifyReader(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	online, err := s.control.Identify(r.Context(), chi.URLParam(r, "id"),
		req.On, identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "online": online})
}

// renameRequest is the request body for PUT /readers/{id}/name.
type renameRequest struct {
	Name string `json:"name"`
}

// handleRenameReader changes a reader's display name.
func (s *Server) handleRenameReader(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.control.Rename(r.Context(), chi.URLParam(r, "id"),
		req.Name, identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "renamed"})
}

// bindRequest is the request body for PUT /readers/{id}/binding.
type bindRequest struct {
	EquipmentID string `json:"equipment_id"`
}

// handleBindReader attaches the reader to an equipment instance.
func (s *Server) handleBindReader(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.control.Bind(r.Context(), chi.URLParam(r, "id"),
		req.EquipmentID, identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "bound"})
}

// handleUnbindEquipment clears every reader binding for an equipment
// instance, typically when the instance is decommissioned. The readers
// themselves survive unbound.
func (s *Server) handleUnbindEquipment(w http.ResponseWriter, r *http.Request) {
	err := s.control.UnbindEquipment(r.Context(), chi.URLParam(r, "id"),
		identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "unbound"})
}

// handleClearHelp clears the reader's help flag.
func (s *Server) handleClearHelp(w http.ResponseWriter, r *http.Request) {
	err := s.control.ClearHelp(r.Context(), chi.URLParam(r, "id"),
		identityFrom(r.Context()).Subject)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

// handleAvailability returns the available / in-use rollup for an
// equipment instance's readers. Equipment with no bound readers gets a
// zero rollup rather than an error.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	agg, err := s.control.Availability(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, agg)
}
