package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/juju/clock"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/sep2"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

// NotificationIDHeader carries the envelope's notification ID on every
// delivery attempt.
const NotificationIDHeader = "X-Notification-Id"

// DefaultTransmitTimeout bounds one delivery attempt.
const DefaultTransmitTimeout = 30 * time.Second

// DefaultRetryDelays is the backoff used when none is configured.
var DefaultRetryDelays = []time.Duration{
	10 * time.Second,
	time.Minute,
	5 * time.Minute,
	20 * time.Minute,
	time.Hour,
}

// maxDrainBytes limits how much of a response body is read before closing
// so the connection can be reused.
const maxDrainBytes = 4096

// TransmitArgs are the arguments of a transmit_notification task.
type TransmitArgs struct {
	URI              string                `json:"uri"`
	Content          []byte                `json:"content"`
	SubscriptionHref string                `json:"subscription_href"`
	NotificationID   string                `json:"notification_id"`
	ResourceType     resource.ResourceType `json:"resource_type"`
	Attempt          int                   `json:"attempt"`
}

// RetryPolicy maps a failed attempt number to the delay before the next
// attempt. Delays are indexed by attempt, starting at zero.
type RetryPolicy struct {
	Delays []time.Duration
}

// Delay returns the wait before retrying after attempt failed, or false
// when attempt was the last one allowed.
func (p RetryPolicy) Delay(attempt int) (time.Duration, bool) {
	if attempt < 0 || attempt >= len(p.Delays) {
		return 0, false
	}
	return p.Delays[attempt], true
}

// MaxAttempts is the total number of attempts the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	return len(p.Delays) + 1
}

// Outcome classifies a delivery attempt.
type Outcome string

// Delivery outcomes.
const (
	OutcomeSent      Outcome = "sent"
	OutcomeRetry     Outcome = "retry"
	OutcomeAbandoned Outcome = "abandoned"
)

// Delivery describes one attempt, for metrics.
type Delivery struct {
	NotificationID   string
	SubscriptionHref string
	ResourceType     resource.ResourceType
	Attempt          int
	Outcome          Outcome

	// StatusCode is zero when no response was received.
	StatusCode int
	Latency    time.Duration
	At         time.Time
}

// DeliveryRecorder receives one Delivery per attempt.
type DeliveryRecorder interface {
	RecordDelivery(d Delivery)
}

// HTTPDoer sends outbound requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransmitterConfig configures a Transmitter. Zero values take defaults.
type TransmitterConfig struct {
	Retry    RetryPolicy
	Timeout  time.Duration
	Clock    clock.Clock
	Recorder DeliveryRecorder
}

// Transmitter runs transmit_notification tasks.
type Transmitter struct {
	client   HTTPDoer
	broker   taskqueue.Broker
	retry    RetryPolicy
	timeout  time.Duration
	clock    clock.Clock
	recorder DeliveryRecorder
	logger   Logger
}

// NewTransmitter creates a Transmitter that re-enqueues failed attempts on
// broker.
//
// Parameters:
//   - client: HTTP client for deliveries, or nil for http.DefaultClient
//   - broker: Queue that receives retry attempts
//   - cfg: Retry table, per-attempt timeout, clock and delivery recorder
//   - logger: Structured logger, or nil to discard
//
// Returns:
//   - *Transmitter: Transmitter ready to handle tasks
func NewTransmitter(client HTTPDoer, broker taskqueue.Broker, cfg TransmitterConfig, logger Logger) *Transmitter {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Retry.Delays == nil {
		cfg.Retry.Delays = DefaultRetryDelays
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTransmitTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transmitter{
		client:   client,
		broker:   broker,
		retry:    cfg.Retry,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// HandleTask decodes a transmit_notification task and runs it.
func (t *Transmitter) HandleTask(ctx context.Context, task taskqueue.Task) error {
	var args TransmitArgs
	if err := task.Decode(&args); err != nil {
		return err
	}
	_, err := t.Handle(ctx, args)
	return err
}

// Handle makes one delivery attempt and schedules the next on failure.
//
// Steps:
//  1. POST the content once (see Transmit)
//  2. On success, record the delivery as sent
//  3. On failure past the end of the retry table, record it as abandoned
//  4. Otherwise enqueue the same notification at Attempt+1 after the
//     table's delay, then record it as a retry
//
// A failed attempt is not an error: it is retried or abandoned according
// to the retry policy.
//
// Parameters:
//   - ctx: Context for the request and the retry enqueue
//   - args: Notification to deliver and its attempt number
//
// Returns:
//   - Outcome: Sent, retry or abandoned
//   - error: If args are unusable or the retry cannot be enqueued
func (t *Transmitter) Handle(ctx context.Context, args TransmitArgs) (Outcome, error) {
	if args.URI == "" || args.NotificationID == "" {
		return "", fmt.Errorf("%w: uri and notification id are required", ErrInvalidTransmission)
	}

	// Attempt delivery
	start := t.clock.Now()
	status, err := t.Transmit(ctx, args)
	d := Delivery{
		NotificationID:   args.NotificationID,
		SubscriptionHref: args.SubscriptionHref,
		ResourceType:     args.ResourceType,
		Attempt:          args.Attempt,
		StatusCode:       status,
		Latency:          t.clock.Now().Sub(start),
		At:               start,
	}

	if err == nil {
		d.Outcome = OutcomeSent
		t.record(d)
		t.logger.Debug("notification sent",
			"notification_id", args.NotificationID, "subscription", args.SubscriptionHref, "attempt", args.Attempt)
		return OutcomeSent, nil
	}

	// Give up once the retry table is exhausted
	delay, ok := t.retry.Delay(args.Attempt)
	if !ok {
		d.Outcome = OutcomeAbandoned
		t.record(d)
		t.logger.Warn("notification abandoned",
			"notification_id", args.NotificationID,
			"subscription", args.SubscriptionHref,
			"uri", args.URI,
			"attempt", args.Attempt,
			"error", err)
		return OutcomeAbandoned, nil
	}

	// Schedule the next attempt
	next := args
	next.Attempt++
	task, terr := taskqueue.NewTask(TaskTransmitNotification, next)
	if terr == nil {
		terr = t.broker.Enqueue(ctx, task, delay)
	}
	if terr != nil {
		return "", fmt.Errorf("scheduling retry %d of notification %s: %w", next.Attempt, args.NotificationID, terr)
	}

	d.Outcome = OutcomeRetry
	t.record(d)
	t.logger.Info("notification failed, retry scheduled",
		"notification_id", args.NotificationID,
		"subscription", args.SubscriptionHref,
		"attempt", args.Attempt,
		"delay", delay,
		"error", err)
	return OutcomeRetry, nil
}

// Transmit POSTs args.Content to args.URI once. It returns the response
// status when one was received. Any non-2xx status, transport error or
// timeout is reported as ErrTransmitFailed.
func (t *Transmitter) Transmit(ctx context.Context, args TransmitArgs) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.URI, bytes.NewReader(args.Content))
	if err != nil {
		return 0, fmt.Errorf("%w: building request for %s: %w", ErrTransmitFailed, args.URI, err)
	}
	req.Header.Set("Content-Type", sep2.ContentType)
	req.Header.Set(NotificationIDHeader, args.NotificationID)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransmitFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes) //nolint:errcheck // Drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%w: %s responded %s", ErrTransmitFailed, args.URI, resp.Status)
	}
	return resp.StatusCode, nil
}

func (t *Transmitter) record(d Delivery) {
	if t.recorder != nil {
		t.recorder.RecordDelivery(d)
	}
}
