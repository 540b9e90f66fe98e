package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sep2-core/internal/subscription"
)

// SubscriptionResponse is the JSON form of a subscription.
type SubscriptionResponse struct {
	ID              int64               `json:"id"`
	Href            string              `json:"href"`
	AggregatorID    int64               `json:"aggregator_id"`
	ResourceType    string              `json:"resource_type"`
	ResourceID      *int64              `json:"resource_id,omitempty"`
	ScopedSiteID    *int64              `json:"scoped_site_id,omitempty"`
	NotificationURI string              `json:"notification_uri"`
	EntityLimit     int                 `json:"entity_limit"`
	Conditions      []ConditionResponse `json:"conditions"`
	ChangedTime     time.Time           `json:"changed_time"`
}

// ConditionResponse is the JSON form of a subscription condition.
type ConditionResponse struct {
	Attribute      int    `json:"attribute"`
	LowerThreshold *int64 `json:"lower_threshold,omitempty"`
	UpperThreshold *int64 `json:"upper_threshold,omitempty"`
}

func toSubscriptionResponse(s subscription.Subscription) SubscriptionResponse {
	conds := make([]ConditionResponse, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		conds = append(conds, ConditionResponse{
			Attribute:      int(c.Attribute),
			LowerThreshold: c.LowerThreshold,
			UpperThreshold: c.UpperThreshold,
		})
	}
	return SubscriptionResponse{
		ID:              s.ID,
		Href:            subscription.Href(s),
		AggregatorID:    s.AggregatorID,
		ResourceType:    s.ResourceType.String(),
		ResourceID:      s.ResourceID,
		ScopedSiteID:    s.ScopedSiteID,
		NotificationURI: s.NotificationURI,
		EntityLimit:     s.EntityLimit,
		Conditions:      conds,
		ChangedTime:     s.ChangedTime,
	}
}

// handleListSubscriptions returns an aggregator's subscriptions.
func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	aggregatorID, err := strconv.ParseInt(r.URL.Query().Get("aggregator_id"), 10, 64)
	if err != nil || aggregatorID <= 0 {
		writeBadRequest(w, "aggregator_id query parameter must be a positive integer")
		return
	}

	subs, err := s.subscriptions.ListByAggregator(r.Context(), aggregatorID)
	if err != nil {
		s.logger.Error("listing subscriptions failed", "aggregator_id", aggregatorID, "error", err)
		writeInternalError(w, "failed to list subscriptions")
		return
	}

	out := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": out,
		"count":         len(out),
	})
}

// handleGetSubscription returns one subscription.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "subscription id must be an integer")
		return
	}

	sub, err := s.subscriptions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			writeNotFound(w, "subscription not found")
			return
		}
		s.logger.Error("getting subscription failed", "id", id, "error", err)
		writeInternalError(w, "failed to get subscription")
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(*sub))
}
