package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

// Task names.
const (
	TaskCheckEntityChanges   = "check_entity_changes"
	TaskTransmitNotification = "transmit_notification"
)

// Register binds the notification task handlers on d.
func Register(d *taskqueue.Dispatcher, checker *Checker, transmitter *Transmitter) {
	d.Register(TaskCheckEntityChanges, checker.HandleTask)
	d.Register(TaskTransmitNotification, transmitter.HandleTask)
}

// Trigger is the entry point for the write path. A Trigger built with a nil
// broker has notifications disabled and ignores every change.
type Trigger struct {
	broker taskqueue.Broker
	logger Logger
}

// NewTrigger creates a Trigger. Pass a nil broker to disable notifications.
func NewTrigger(broker taskqueue.Broker, logger Logger) *Trigger {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Trigger{broker: broker, logger: logger}
}

// Enabled reports whether changes are turned into notifications.
func (t *Trigger) Enabled() bool {
	return t != nil && t.broker != nil
}

// OnUpsert schedules a check of the entities of rt written at changedAt.
// Call it once the write sharing that changed_time has committed.
func (t *Trigger) OnUpsert(ctx context.Context, rt resource.ResourceType, changedAt time.Time) error {
	return t.schedule(ctx, rt, changedAt, false)
}

// OnDelete schedules a check of the entities of rt archived at deletedAt.
func (t *Trigger) OnDelete(ctx context.Context, rt resource.ResourceType, deletedAt time.Time) error {
	return t.schedule(ctx, rt, deletedAt, true)
}

func (t *Trigger) schedule(ctx context.Context, rt resource.ResourceType, at time.Time, deleted bool) error {
	if !rt.Valid() {
		return fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, rt)
	}
	if !t.Enabled() {
		if t != nil {
			t.logger.Debug("notifications disabled, change ignored", "resource_type", rt.String(), "deleted", deleted)
		}
		return nil
	}
	return ScheduleCheck(ctx, t.broker, rt, at, deleted)
}

// ScheduleCheck enqueues a check_entity_changes task on broker.
//
// A nil broker means notifications are disabled, as with Trigger, and
// nothing is scheduled.
//
// Parameters:
//   - ctx: Context for the enqueue
//   - broker: Queue to schedule on, or nil
//   - rt: Resource type whose entities changed
//   - at: Shared changed_time (or archive time) of the write, stored as UTC
//   - deleted: True when the entities were archived rather than upserted
//
// Returns:
//   - error: If rt is unsupported, the task cannot be encoded or the
//     broker rejects it
func ScheduleCheck(ctx context.Context, broker taskqueue.Broker, rt resource.ResourceType, at time.Time, deleted bool) error {
	if !rt.Valid() {
		return fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, rt)
	}
	if broker == nil {
		return nil
	}

	task, err := taskqueue.NewTask(TaskCheckEntityChanges, CheckArgs{
		ResourceType: rt,
		ChangedAt:    at.UTC(),
		Deleted:      deleted,
	})
	if err != nil {
		return err
	}
	if err := broker.Enqueue(ctx, task, 0); err != nil {
		return fmt.Errorf("enqueueing %s check: %w", rt, err)
	}
	return nil
}
