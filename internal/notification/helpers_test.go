package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/taskqueue"
)

var changedAt = time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

func ptr(v int64) *int64 { return &v }

func testSite(id, aggregatorID int64) resource.Site {
	return resource.Site{
		SiteID:       id,
		AggregatorID: aggregatorID,
		NMI:          fmt.Sprintf("NMI%07d", id),
		LFDI:         "ABCDEF0123",
		SFDI:         1000 + id,
		TimezoneID:   "Australia/Brisbane",
		ChangedTime:  changedAt,
	}
}

func testReading(id, readingTypeID int64, site resource.Site, value int64) resource.Reading {
	return resource.Reading{
		SiteReadingID: id,
		ReadingType: resource.SiteReadingType{
			SiteReadingTypeID: readingTypeID,
			Site:              site,
			UOM:               38,
			ChangedTime:       changedAt,
		},
		TimePeriodStart:   changedAt.Add(-5 * time.Minute),
		TimePeriodSeconds: 300,
		Value:             value,
		ChangedTime:       changedAt,
	}
}

func testDOE(id int64, site resource.Site) resource.DynamicOperatingEnvelope {
	return resource.DynamicOperatingEnvelope{
		DynamicOperatingEnvelopeID: id,
		Site:                       site,
		StartTime:                  changedAt,
		DurationSeconds:            300,
		ImportLimitActiveWatts:     decimal.RequireFromString("5000"),
		ExportLimitWatts:           decimal.RequireFromString("1500.5"),
		ChangedTime:                changedAt,
	}
}

func testRate(id, tariffID int64, site resource.Site, start time.Time) resource.TariffGeneratedRate {
	return resource.TariffGeneratedRate{
		TariffGeneratedRateID: id,
		TariffID:              tariffID,
		Site:                  site,
		StartTime:             start,
		DurationSeconds:       1800,
		ImportActivePrice:     decimal.RequireFromString("0.2512"),
		ExportActivePrice:     decimal.RequireFromString("-0.05"),
		ImportReactivePrice:   decimal.RequireFromString("0.01"),
		ExportReactivePrice:   decimal.Zero,
		ChangedTime:           changedAt,
	}
}

func entities[T resource.Entity](items ...T) []resource.Entity {
	out := make([]resource.Entity, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// enqueued is one task seen by recordingBroker.
type enqueued struct {
	task  taskqueue.Task
	delay time.Duration
}

// recordingBroker records tasks instead of running them.
type recordingBroker struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (b *recordingBroker) Enqueue(_ context.Context, task taskqueue.Task, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.tasks = append(b.tasks, enqueued{task: task, delay: delay})
	return nil
}

func (b *recordingBroker) all() []enqueued {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]enqueued(nil), b.tasks...)
}

// pop removes and returns the oldest recorded task.
func (b *recordingBroker) pop() (enqueued, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.tasks) == 0 {
		return enqueued{}, false
	}
	e := b.tasks[0]
	b.tasks = b.tasks[1:]
	return e, true
}
