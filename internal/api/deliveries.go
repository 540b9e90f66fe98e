package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/sep2-core/internal/audit"
)

// handleListDeliveries returns recorded delivery attempts, most recent first.
//
// Query parameters: notification_id, outcome, limit, offset.
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.deliveries == nil {
		writeUnavailable(w, "delivery log is not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		NotificationID: q.Get("notification_id"),
		Outcome:        q.Get("outcome"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = v
	}

	result, err := s.deliveries.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing deliveries failed", "error", err)
		writeInternalError(w, "failed to list deliveries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
