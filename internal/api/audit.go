package api

import (
	"net/http"
	"strconv"

	"github.com/openfab-labs/acs-core/internal/audit"
)

// recordAudit writes an audit entry for an API-originated action.
// Failures are logged and swallowed; the action itself already succeeded.
func (s *Server) recordAudit(r *http.Request, action, readerID string, details map[string]any) {
	if s.audit == nil {
		return
	}

	err := s.audit.Create(r.Context(), &audit.AuditLog{
		Action:   action,
		ReaderID: readerID,
		Actor:    identityFrom(r.Context()).Subject,
		Details:  details,
	})
	if err != nil {
		s.logger.Warn("audit write failed", "action", action, "reader_id", readerID, "error", err)
	}
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action type (pair, command, identify, rename, ...)
//   - reader_id: filter by specific reader
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		ReaderID: q.Get("reader_id"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
