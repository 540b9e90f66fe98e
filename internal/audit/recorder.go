package audit

import (
	"context"
	"time"

	"github.com/nerrad567/sep2-core/internal/notification"
)

// writeTimeout bounds one delivery log insert.
const writeTimeout = 5 * time.Second

// Logger is the logging surface used by Recorder.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Recorder writes every delivery attempt to a Repository. It implements
// notification.DeliveryRecorder.
//
// A failed insert is logged and dropped; delivery never waits on the trail.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder over repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// RecordDelivery implements notification.DeliveryRecorder.
func (r *Recorder) RecordDelivery(d notification.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	log := &DeliveryLog{
		NotificationID:   d.NotificationID,
		SubscriptionHref: d.SubscriptionHref,
		ResourceType:     d.ResourceType.String(),
		Attempt:          d.Attempt,
		Outcome:          string(d.Outcome),
		StatusCode:       d.StatusCode,
		LatencyMS:        d.Latency.Milliseconds(),
		CreatedAt:        d.At,
	}
	if err := r.repo.Create(ctx, log); err != nil {
		r.logger.Error("recording delivery failed",
			"notification_id", d.NotificationID,
			"outcome", string(d.Outcome),
			"error", err,
		)
	}
}
