// Package notification dispatches subscription notifications for changed
// and deleted SEP2 resources.
//
// A change to a watched resource is reported with the resource type and
// the changed_time shared by every row in the write. The pipeline then runs
// as two kinds of task on a taskqueue.Broker:
//
//   - check_entity_changes: fetch every entity written (or archived) at that
//     instant, group them by BatchKey, look up each aggregator's
//     subscriptions once, filter each batch per subscription, split the
//     result into pages and enqueue one transmission per page.
//   - transmit_notification: POST one rendered page to the subscriber. A
//     failed attempt is re-enqueued with the delay from the RetryPolicy
//     until the policy runs out, after which the delivery is abandoned and
//     logged.
//
// Every page carries a notification ID generated when the page is built.
// The ID is sent in the X-Notification-Id header and stays the same across
// retries so receivers can discard duplicates.
//
// Notifications are switched off by constructing a Trigger with a nil
// broker. Everything downstream of the trigger is unaware of the switch.
//
// Usage:
//
//	checker := notification.NewChecker(resources, subs, sep2.NewMapper(), broker, notification.CheckerConfig{MaxPageSize: 100}, log)
//	transmitter := notification.NewTransmitter(http.DefaultClient, broker, notification.TransmitterConfig{Retry: policy}, log)
//	notification.Register(dispatcher, checker, transmitter)
//
//	trigger := notification.NewTrigger(broker, log)
//	err := trigger.OnUpsert(ctx, resource.TypeReading, changedAt)
package notification
