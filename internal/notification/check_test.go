package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/sep2"
	"github.com/nerrad567/sep2-core/internal/subscription"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

type fakeEntities struct {
	changed []resource.Entity
	deleted []resource.Entity
	err     error

	mu    sync.Mutex
	calls []string
}

func (f *fakeEntities) FetchChangedAt(_ context.Context, rt resource.ResourceType, at time.Time) ([]resource.Entity, error) {
	return f.fetch("changed", rt, at, f.changed)
}

func (f *fakeEntities) FetchDeletedAt(_ context.Context, rt resource.ResourceType, at time.Time) ([]resource.Entity, error) {
	return f.fetch("deleted", rt, at, f.deleted)
}

func (f *fakeEntities) fetch(kind string, _ resource.ResourceType, _ time.Time, out []resource.Entity) ([]resource.Entity, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return out, nil
}

type fakeSubscriptions struct {
	byAggregator map[int64][]subscription.Subscription
	err          error

	mu    sync.Mutex
	calls map[int64]int
}

func (f *fakeSubscriptions) ListForAggregator(_ context.Context, aggregatorID int64, rt resource.ResourceType) ([]subscription.Subscription, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[aggregatorID]++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []subscription.Subscription
	for _, s := range f.byAggregator[aggregatorID] {
		if s.ResourceType == rt {
			out = append(out, s)
		}
	}
	return out, nil
}

// failingMapper fails for one subscription and renders the rest.
type failingMapper struct {
	sep2.Mapper
	failFor int64
}

func (m failingMapper) Payload(p sep2.Page) ([]byte, error) {
	if p.Subscription.ID == m.failFor {
		return nil, errors.New("render failed")
	}
	return m.Mapper.Payload(p)
}

func readingSub(id, aggregatorID int64, limit int) subscription.Subscription {
	return subscription.Subscription{
		ID:              id,
		AggregatorID:    aggregatorID,
		ResourceType:    resource.TypeReading,
		NotificationURI: "https://agg.example.com/notify",
		EntityLimit:     limit,
	}
}

// readingFixture has three batches across two aggregators and four
// subscriptions that together produce seven envelopes.
func readingFixture() (*fakeEntities, *fakeSubscriptions) {
	s1, s2, s3 := testSite(1, 1), testSite(2, 1), testSite(3, 2)
	ents := &fakeEntities{changed: entities(
		testReading(100, 10, s1, 5),
		testReading(101, 10, s1, 50),
		testReading(102, 20, s2, 7),
		testReading(103, 30, s3, 9),
	)}

	scoped := readingSub(11, 1, 10)
	scoped.ScopedSiteID = ptr(2)
	conditional := readingSub(12, 1, 10)
	conditional.Conditions = []subscription.Condition{
		{Attribute: subscription.AttributeReadingValue, UpperThreshold: ptr(10)},
	}
	subs := &fakeSubscriptions{byAggregator: map[int64][]subscription.Subscription{
		1: {readingSub(10, 1, 1), scoped, conditional},
		2: {readingSub(20, 2, 0)},
	}}
	return ents, subs
}

func decodeTransmit(t *testing.T, e enqueued) TransmitArgs {
	t.Helper()
	if e.task.Name != TaskTransmitNotification {
		t.Fatalf("task name = %q, want %q", e.task.Name, TaskTransmitNotification)
	}
	var args TransmitArgs
	if err := e.task.Decode(&args); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return args
}

func TestChecker_Check_EnqueuesOneTransmissionPerEnvelope(t *testing.T) {
	ents, subs := readingFixture()
	broker := &recordingBroker{}
	c := NewChecker(ents, subs, sep2.NewMapper(), broker, CheckerConfig{MaxPageSize: 100, LookupConcurrency: 2}, nil)

	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if n != 7 {
		t.Errorf("Check() enqueued %d, want 7", n)
	}

	perSub := map[string]int{}
	ids := map[string]bool{}
	for _, e := range broker.all() {
		if e.delay != 0 {
			t.Errorf("initial transmission delayed by %v", e.delay)
		}
		args := decodeTransmit(t, e)
		if args.Attempt != 0 {
			t.Errorf("attempt = %d, want 0", args.Attempt)
		}
		if args.URI != "https://agg.example.com/notify" {
			t.Errorf("uri = %q", args.URI)
		}
		if args.ResourceType != resource.TypeReading {
			t.Errorf("resource type = %v", args.ResourceType)
		}
		if !strings.Contains(string(args.Content), "<Notification") || !strings.Contains(string(args.Content), "<status>0</status>") {
			t.Errorf("content is not an upsert notification: %s", args.Content)
		}
		if ids[args.NotificationID] {
			t.Errorf("duplicate notification id %s", args.NotificationID)
		}
		ids[args.NotificationID] = true
		perSub[args.SubscriptionHref]++
	}

	want := map[string]int{
		"/edev/0/sub/10": 3, // limit 1 over batches of 2 and 1
		"/edev/2/sub/11": 1, // site 2 only
		"/edev/0/sub/12": 2, // values 5 and 7 pass, in separate batches
		"/edev/0/sub/20": 1,
	}
	for href, count := range want {
		if perSub[href] != count {
			t.Errorf("%s got %d transmissions, want %d", href, perSub[href], count)
		}
	}

	for agg, calls := range subs.calls {
		if calls != 1 {
			t.Errorf("aggregator %d looked up %d times, want 1", agg, calls)
		}
	}
	if len(subs.calls) != 2 {
		t.Errorf("looked up %d aggregators, want 2", len(subs.calls))
	}
}

func TestChecker_Check_RateFanOut(t *testing.T) {
	site := testSite(1, 1)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ents := &fakeEntities{changed: entities(
		testRate(1, 7, site, start),
		testRate(2, 7, site, start.Add(30*time.Minute)),
		testRate(3, 7, site, start.Add(time.Hour)),
	)}
	subs := &fakeSubscriptions{byAggregator: map[int64][]subscription.Subscription{
		1: {{ID: 5, AggregatorID: 1, ResourceType: resource.TypeTariffGeneratedRate, NotificationURI: "http://x.example", EntityLimit: 2}},
	}}
	broker := &recordingBroker{}
	c := NewChecker(ents, subs, sep2.NewMapper(), broker, CheckerConfig{}, nil)

	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeTariffGeneratedRate, ChangedAt: changedAt})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if n != 8 {
		t.Errorf("Check() enqueued %d, want 8", n)
	}

	perPriceType := map[int]int{}
	for _, e := range broker.all() {
		args := decodeTransmit(t, e)
		for pt := 1; pt <= 4; pt++ {
			if strings.Contains(string(args.Content), fmt.Sprintf("/tp/7/rc/2026-03-01/%d/tti<", pt)) {
				perPriceType[pt]++
			}
		}
	}
	for pt := 1; pt <= 4; pt++ {
		if perPriceType[pt] != 2 {
			t.Errorf("price type %d got %d envelopes, want 2", pt, perPriceType[pt])
		}
	}
}

func TestChecker_Check_Deleted(t *testing.T) {
	site := testSite(3, 1)
	ents := &fakeEntities{
		changed: entities(testSite(99, 1)),
		deleted: entities(site),
	}
	subs := &fakeSubscriptions{byAggregator: map[int64][]subscription.Subscription{
		1: {{ID: 1, AggregatorID: 1, ResourceType: resource.TypeSite, NotificationURI: "http://x.example"}},
	}}
	broker := &recordingBroker{}
	c := NewChecker(ents, subs, sep2.NewMapper(), broker, CheckerConfig{}, nil)

	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeSite, ChangedAt: changedAt, Deleted: true})
	if err != nil || n != 1 {
		t.Fatalf("Check() = %d, %v; want 1, nil", n, err)
	}
	if len(ents.calls) != 1 || ents.calls[0] != "deleted" {
		t.Errorf("fetch calls = %v, want [deleted]", ents.calls)
	}
	args := decodeTransmit(t, broker.all()[0])
	if !strings.Contains(string(args.Content), "<status>4</status>") {
		t.Errorf("deleted notification missing status 4: %s", args.Content)
	}
	if !strings.Contains(string(args.Content), `href="/edev/3"`) {
		t.Errorf("deleted notification missing site 3: %s", args.Content)
	}
}

func TestChecker_Check_MaxPageSizeCapsEntityLimit(t *testing.T) {
	site := testSite(1, 1)
	var input []resource.Entity
	for i := range 5 {
		input = append(input, testDOE(int64(i+1), site))
	}
	ents := &fakeEntities{changed: input}
	subs := &fakeSubscriptions{byAggregator: map[int64][]subscription.Subscription{
		1: {{ID: 1, AggregatorID: 1, ResourceType: resource.TypeDynamicOperatingEnvelope, NotificationURI: "http://x.example", EntityLimit: 1000}},
	}}
	c := NewChecker(ents, subs, sep2.NewMapper(), &recordingBroker{}, CheckerConfig{MaxPageSize: 2}, nil)

	envs, err := c.Envelopes(context.Background(), CheckArgs{ResourceType: resource.TypeDynamicOperatingEnvelope, ChangedAt: changedAt})
	if err != nil {
		t.Fatal(err)
	}
	if len(envs) != 3 {
		t.Errorf("got %d envelopes, want 3", len(envs))
	}
	for _, env := range envs {
		if len(env.Entities) > 2 {
			t.Errorf("page of %d exceeds max page size", len(env.Entities))
		}
	}
}

func TestChecker_Check_FailuresAbortBeforeEnqueue(t *testing.T) {
	fetchErr := errors.New("db gone")

	t.Run("entity fetch", func(t *testing.T) {
		_, subs := readingFixture()
		broker := &recordingBroker{}
		c := NewChecker(&fakeEntities{err: fetchErr}, subs, sep2.NewMapper(), broker, CheckerConfig{}, nil)
		if _, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt}); !errors.Is(err, fetchErr) {
			t.Errorf("Check() error = %v, want fetch error", err)
		}
		if len(broker.all()) != 0 || len(subs.calls) != 0 {
			t.Error("nothing should run after a failed fetch")
		}
	})

	t.Run("subscription lookup", func(t *testing.T) {
		ents, subs := readingFixture()
		subs.err = fetchErr
		broker := &recordingBroker{}
		c := NewChecker(ents, subs, sep2.NewMapper(), broker, CheckerConfig{}, nil)
		if _, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt}); !errors.Is(err, fetchErr) {
			t.Errorf("Check() error = %v, want lookup error", err)
		}
		if len(broker.all()) != 0 {
			t.Error("nothing should be enqueued after a failed lookup")
		}
	})

	t.Run("unsupported resource", func(t *testing.T) {
		ents, subs := readingFixture()
		c := NewChecker(ents, subs, sep2.NewMapper(), &recordingBroker{}, CheckerConfig{}, nil)
		if _, err := c.Check(context.Background(), CheckArgs{ResourceType: 0, ChangedAt: changedAt}); !errors.Is(err, resource.ErrUnsupportedResource) {
			t.Errorf("Check() error = %v, want ErrUnsupportedResource", err)
		}
		if len(ents.calls) != 0 {
			t.Error("unsupported resource should not be fetched")
		}
	})
}

func TestChecker_Check_RenderFailureSkipsEnvelope(t *testing.T) {
	ents, subs := readingFixture()
	broker := &recordingBroker{}
	c := NewChecker(ents, subs, failingMapper{failFor: 10}, broker, CheckerConfig{}, nil)

	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Check() enqueued %d, want 4 (7 minus subscription 10's 3)", n)
	}
	for _, e := range broker.all() {
		if args := decodeTransmit(t, e); args.SubscriptionHref == "/edev/0/sub/10" {
			t.Error("subscription 10 should have been skipped")
		}
	}
}

func TestChecker_Check_EnqueueErrorsAreJoined(t *testing.T) {
	ents, subs := readingFixture()
	brokerErr := errors.New("queue full")
	c := NewChecker(ents, subs, sep2.NewMapper(), &recordingBroker{err: brokerErr}, CheckerConfig{}, nil)

	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt})
	if !errors.Is(err, brokerErr) {
		t.Fatalf("Check() error = %v, want broker error", err)
	}
	if n != 0 {
		t.Errorf("Check() enqueued %d, want 0", n)
	}
	if got := strings.Count(err.Error(), "queue full"); got != 7 {
		t.Errorf("joined error holds %d failures, want 7", got)
	}
}

func TestChecker_Check_NoEntities(t *testing.T) {
	subs := &fakeSubscriptions{}
	c := NewChecker(&fakeEntities{}, subs, sep2.NewMapper(), &recordingBroker{}, CheckerConfig{}, nil)
	n, err := c.Check(context.Background(), CheckArgs{ResourceType: resource.TypeSite, ChangedAt: changedAt})
	if err != nil || n != 0 {
		t.Errorf("Check() = %d, %v; want 0, nil", n, err)
	}
	if len(subs.calls) != 0 {
		t.Error("no entities should mean no subscription lookups")
	}
}

func TestChecker_Check_RerunGivesFreshIDs(t *testing.T) {
	ents, subs := readingFixture()
	c := NewChecker(ents, subs, sep2.NewMapper(), &recordingBroker{}, CheckerConfig{}, nil)
	args := CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt}

	first, err := c.Envelopes(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Envelopes(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("reruns produced %d and %d envelopes", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Entities) != len(second[i].Entities) || first[i].Subscription.ID != second[i].Subscription.ID {
			t.Errorf("envelope %d differs between runs", i)
		}
		if first[i].NotificationID == second[i].NotificationID {
			t.Errorf("envelope %d reused notification id", i)
		}
	}
}

func TestChecker_HandleTask(t *testing.T) {
	ents, subs := readingFixture()
	broker := &recordingBroker{}
	c := NewChecker(ents, subs, sep2.NewMapper(), broker, CheckerConfig{}, nil)

	task, err := taskqueue.NewTask(TaskCheckEntityChanges, CheckArgs{ResourceType: resource.TypeReading, ChangedAt: changedAt})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.HandleTask(context.Background(), task); err != nil {
		t.Fatalf("HandleTask() error = %v", err)
	}
	if len(broker.all()) != 7 {
		t.Errorf("HandleTask() enqueued %d, want 7", len(broker.all()))
	}

	bad := taskqueue.Task{Name: TaskCheckEntityChanges, Args: []byte("[")}
	if err := c.HandleTask(context.Background(), bad); !errors.Is(err, taskqueue.ErrInvalidTask) {
		t.Errorf("HandleTask(bad) error = %v, want ErrInvalidTask", err)
	}
}
