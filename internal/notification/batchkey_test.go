package notification

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/sep2-core/internal/resource"
)

func TestBatchKeyFor(t *testing.T) {
	site := testSite(5, 2)
	// 15:00 UTC is 01:00 the next day in Brisbane.
	lateRate := testRate(300, 7, site, time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		rt       resource.ResourceType
		entity   resource.Entity
		want     BatchKey
		filterID int64
	}{
		{"site", resource.TypeSite, site, BatchKey{AggregatorID: 2, SiteID: 5}, 5},
		{"reading", resource.TypeReading, testReading(100, 10, site, 42), BatchKey{AggregatorID: 2, SiteID: 5, ReadingTypeID: 10}, 10},
		{"doe", resource.TypeDynamicOperatingEnvelope, testDOE(200, site), BatchKey{AggregatorID: 2, SiteID: 5}, 200},
		{"rate", resource.TypeTariffGeneratedRate, lateRate, BatchKey{AggregatorID: 2, SiteID: 5, TariffID: 7, Day: "2026-03-02"}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := BatchKeyFor(tt.rt, tt.entity)
			if err != nil {
				t.Fatalf("BatchKeyFor() error = %v", err)
			}
			if key != tt.want {
				t.Errorf("BatchKeyFor() = %+v, want %+v", key, tt.want)
			}

			id, err := SubscriptionFilterID(tt.rt, tt.entity)
			if err != nil {
				t.Fatalf("SubscriptionFilterID() error = %v", err)
			}
			if id != tt.filterID {
				t.Errorf("SubscriptionFilterID() = %d, want %d", id, tt.filterID)
			}

			siteID, err := SiteIDFor(tt.rt, tt.entity)
			if err != nil {
				t.Fatalf("SiteIDFor() error = %v", err)
			}
			if siteID != 5 {
				t.Errorf("SiteIDFor() = %d, want 5", siteID)
			}
		})
	}
}

func TestBatchKeyFor_UnsupportedResource(t *testing.T) {
	site := testSite(1, 1)
	for _, rt := range []resource.ResourceType{0, 99} {
		if _, err := BatchKeyFor(rt, site); !errors.Is(err, resource.ErrUnsupportedResource) {
			t.Errorf("BatchKeyFor(%d) error = %v, want ErrUnsupportedResource", rt, err)
		}
		if _, err := SubscriptionFilterID(rt, site); !errors.Is(err, resource.ErrUnsupportedResource) {
			t.Errorf("SubscriptionFilterID(%d) error = %v, want ErrUnsupportedResource", rt, err)
		}
		if _, err := SiteIDFor(rt, site); !errors.Is(err, resource.ErrUnsupportedResource) {
			t.Errorf("SiteIDFor(%d) error = %v, want ErrUnsupportedResource", rt, err)
		}
	}
}

func TestBatchKeyFor_EntityMismatch(t *testing.T) {
	site := testSite(1, 1)
	if _, err := BatchKeyFor(resource.TypeReading, site); !errors.Is(err, resource.ErrEntityMismatch) {
		t.Errorf("BatchKeyFor(reading, site) error = %v, want ErrEntityMismatch", err)
	}
	if _, err := BatchKeyFor(resource.TypeSite, nil); !errors.Is(err, resource.ErrEntityMismatch) {
		t.Errorf("BatchKeyFor(site, nil) error = %v, want ErrEntityMismatch", err)
	}
}

func TestBatchKey_String(t *testing.T) {
	tests := []struct {
		key  BatchKey
		want string
	}{
		{BatchKey{AggregatorID: 1, SiteID: 2}, "agg=1 site=2"},
		{BatchKey{AggregatorID: 1, SiteID: 2, ReadingTypeID: 3}, "agg=1 site=2 srt=3"},
		{BatchKey{AggregatorID: 1, SiteID: 2, TariffID: 4, Day: "2026-03-01"}, "agg=1 site=2 tariff=4 day=2026-03-01"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
