package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sep2-core/internal/resource"
)

// ChangeRequest reports a committed write to a watched resource.
type ChangeRequest struct {
	// ChangedTime is the changed_time (or deleted_time) shared by every row
	// in the write.
	ChangedTime time.Time `json:"changed_time"`
	Deleted     bool      `json:"deleted"`
}

// ChangeResponse reports what the trigger did with a change.
type ChangeResponse struct {
	Status       string    `json:"status"` // "scheduled" or "disabled"
	ResourceType string    `json:"resource_type"`
	ChangedTime  time.Time `json:"changed_time"`
	Deleted      bool      `json:"deleted"`
}

// handleResourceChanged schedules a notification check for one write.
func (s *Server) handleResourceChanged(w http.ResponseWriter, r *http.Request) {
	rt, err := resource.ParseResourceType(chi.URLParam(r, "resource"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ChangedTime.IsZero() {
		writeBadRequest(w, "changed_time is required")
		return
	}

	resp := ChangeResponse{
		Status:       "disabled",
		ResourceType: rt.String(),
		ChangedTime:  req.ChangedTime.UTC(),
		Deleted:      req.Deleted,
	}
	if !s.trigger.Enabled() {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if req.Deleted {
		err = s.trigger.OnDelete(r.Context(), rt, req.ChangedTime)
	} else {
		err = s.trigger.OnUpsert(r.Context(), rt, req.ChangedTime)
	}
	if err != nil {
		if errors.Is(err, resource.ErrUnsupportedResource) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("scheduling notification check failed",
			"resource_type", rt.String(), "deleted", req.Deleted,
			"request_id", RequestID(r.Context()), "error", err)
		writeUnavailable(w, "notification check could not be scheduled")
		return
	}

	resp.Status = "scheduled"
	writeJSON(w, http.StatusAccepted, resp)
}
