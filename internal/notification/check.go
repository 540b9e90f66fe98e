package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/sep2"
	"github.com/nerrad567/sep2-core/internal/subscription"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

// Checker defaults.
const (
	DefaultMaxPageSize       = 100
	DefaultLookupConcurrency = 4
)

// EntitySource loads the entities written or archived at one instant.
// *resource.SQLiteRepository satisfies it.
type EntitySource interface {
	FetchChangedAt(ctx context.Context, rt resource.ResourceType, at time.Time) ([]resource.Entity, error)
	FetchDeletedAt(ctx context.Context, rt resource.ResourceType, at time.Time) ([]resource.Entity, error)
}

// SubscriptionSource lists an aggregator's subscriptions to one resource
// type with their conditions loaded. *subscription.SQLiteRepository
// satisfies it.
type SubscriptionSource interface {
	ListForAggregator(ctx context.Context, aggregatorID int64, rt resource.ResourceType) ([]subscription.Subscription, error)
}

// PayloadMapper renders a page as a notification body.
// sep2.Mapper satisfies it.
type PayloadMapper interface {
	Payload(p sep2.Page) ([]byte, error)
}

// CheckArgs are the arguments of a check_entity_changes task.
type CheckArgs struct {
	ResourceType resource.ResourceType `json:"resource_type"`
	ChangedAt    time.Time             `json:"changed_at"`
	Deleted      bool                  `json:"deleted,omitempty"`
}

// CheckerConfig holds the Checker's limits. Zero values take defaults.
type CheckerConfig struct {
	// MaxPageSize caps every subscription's entity limit.
	MaxPageSize int

	// LookupConcurrency bounds the subscription lookups in flight at once.
	LookupConcurrency int
}

// Checker runs check_entity_changes tasks.
//
// Thread Safety: Check is safe for concurrent use.
type Checker struct {
	entities EntitySource
	subs     SubscriptionSource
	mapper   PayloadMapper
	broker   taskqueue.Broker
	cfg      CheckerConfig
	logger   Logger
}

// NewChecker creates a Checker that enqueues transmissions on broker.
//
// Parameters:
//   - entities: Source of entities by changed_time or archive time
//   - subs: Source of each aggregator's subscriptions
//   - mapper: Renders a page of entities into a notification body
//   - broker: Queue that receives transmit_notification tasks
//   - cfg: Page size cap and lookup concurrency; zero values take defaults
//   - logger: Structured logger, or nil to discard
//
// Returns:
//   - *Checker: Checker ready to handle tasks
func NewChecker(entities EntitySource, subs SubscriptionSource, mapper PayloadMapper, broker taskqueue.Broker, cfg CheckerConfig, logger Logger) *Checker {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = DefaultMaxPageSize
	}
	if cfg.LookupConcurrency <= 0 {
		cfg.LookupConcurrency = DefaultLookupConcurrency
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Checker{
		entities: entities,
		subs:     subs,
		mapper:   mapper,
		broker:   broker,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandleTask decodes a check_entity_changes task and runs it.
func (c *Checker) HandleTask(ctx context.Context, task taskqueue.Task) error {
	var args CheckArgs
	if err := task.Decode(&args); err != nil {
		return err
	}
	_, err := c.Check(ctx, args)
	return err
}

// Check builds the envelopes for one change event and enqueues a
// transmission for each.
//
// Steps:
//  1. Build every envelope for the change (see Envelopes)
//  2. Render each envelope's page into a notification body
//  3. Enqueue a transmit_notification task at attempt 0
//
// Fetch failures abort the check before anything is enqueued. An envelope
// whose payload cannot be rendered is logged and skipped. Enqueue failures
// do not stop the remaining envelopes and are returned joined.
//
// Parameters:
//   - ctx: Context for fetching, lookups and enqueueing
//   - args: The change event
//
// Returns:
//   - int: Number of transmissions enqueued
//   - error: Fetch or lookup failure, or the joined enqueue failures
func (c *Checker) Check(ctx context.Context, args CheckArgs) (int, error) {
	envelopes, err := c.Envelopes(ctx, args)
	if err != nil {
		return 0, err
	}

	var (
		enqueued int
		errs     []error
	)
	for _, env := range envelopes {
		// Render
		href := subscription.Href(env.Subscription)
		payload, err := c.mapper.Payload(sep2.Page{
			ResourceType: env.ResourceType,
			Subscription: env.Subscription,
			SiteID:       env.SiteID,
			Entities:     env.Entities,
			PriceType:    env.PriceType,
			Deleted:      args.Deleted,
		})
		if err != nil {
			c.logger.Error("rendering notification failed, skipping",
				"notification_id", env.NotificationID, "subscription", href, "error", err)
			continue
		}

		// Enqueue
		task, err := taskqueue.NewTask(TaskTransmitNotification, TransmitArgs{
			URI:              env.Subscription.NotificationURI,
			Content:          payload,
			SubscriptionHref: href,
			NotificationID:   env.NotificationID.String(),
			ResourceType:     env.ResourceType,
			Attempt:          0,
		})
		if err == nil {
			err = c.broker.Enqueue(ctx, task, 0)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueueing notification %s for %s: %w", env.NotificationID, href, err))
			continue
		}
		enqueued++
	}

	c.logger.Info("notification check complete",
		"resource_type", args.ResourceType.String(),
		"changed_at", args.ChangedAt,
		"deleted", args.Deleted,
		"envelopes", len(envelopes),
		"enqueued", enqueued)

	return enqueued, errors.Join(errs...)
}

// Envelopes fetches the entities for args and returns every envelope they
// produce, without rendering or enqueueing anything.
//
// Steps:
//  1. Fetch the entities written (or archived) at args.ChangedAt
//  2. Group them into batches by aggregator, site or rate component
//  3. Load each aggregator's subscriptions to the resource type once
//  4. Filter each batch through each subscription's conditions
//  5. Split the serviced entities into pages of the subscription's size
//
// Parameters:
//   - ctx: Context for the fetch and subscription lookups
//   - args: The change event
//
// Returns:
//   - []Envelope: Every page to send, or nil when nothing changed
//   - error: If the resource type is unsupported or any stage fails
func (c *Checker) Envelopes(ctx context.Context, args CheckArgs) ([]Envelope, error) {
	if !args.ResourceType.Valid() {
		return nil, fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, args.ResourceType)
	}

	// Fetch
	fetch := c.entities.FetchChangedAt
	if args.Deleted {
		fetch = c.entities.FetchDeletedAt
	}
	entities, err := fetch(ctx, args.ResourceType, args.ChangedAt)
	if err != nil {
		return nil, fmt.Errorf("fetching %s entities at %s: %w", args.ResourceType, args.ChangedAt.UTC().Format(time.RFC3339Nano), err)
	}

	// Batch
	batches, err := NewBatches(args.ChangedAt, args.ResourceType, entities)
	if err != nil {
		return nil, err
	}
	if batches.Len() == 0 {
		return nil, nil
	}

	// Look up subscriptions
	subsByAggregator, err := c.lookupSubscriptions(ctx, args.ResourceType, batches.AggregatorIDs())
	if err != nil {
		return nil, err
	}

	// Filter and page
	var envelopes []Envelope
	for key, batch := range batches.All() {
		for _, sub := range subsByAggregator[key.AggregatorID] {
			serviced, err := EntitiesServicedBy(sub, args.ResourceType, batch)
			if err != nil {
				return nil, fmt.Errorf("filtering %s for subscription %d: %w", key, sub.ID, err)
			}
			for env := range Pages(args.ResourceType, sub, key, sub.PageSize(c.cfg.MaxPageSize), serviced) {
				envelopes = append(envelopes, env)
			}
		}
	}
	return envelopes, nil
}

// lookupSubscriptions loads the subscriptions of each aggregator exactly
// once, with at most LookupConcurrency queries in flight.
func (c *Checker) lookupSubscriptions(ctx context.Context, rt resource.ResourceType, aggregatorIDs []int64) (map[int64][]subscription.Subscription, error) {
	var mu sync.Mutex
	out := make(map[int64][]subscription.Subscription, len(aggregatorIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.LookupConcurrency)
	for _, id := range aggregatorIDs {
		g.Go(func() error {
			subs, err := c.subs.ListForAggregator(gctx, id, rt)
			if err != nil {
				return fmt.Errorf("listing %s subscriptions for aggregator %d: %w", rt, id, err)
			}
			mu.Lock()
			out[id] = subs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
