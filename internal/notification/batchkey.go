package notification

import (
	"fmt"

	"github.com/nerrad567/sep2-core/internal/resource"
)

// BatchKey groups entities of one resource type that can share a
// notification. Every key carries the owning aggregator and site; readings
// add their reading type and rates add their tariff and local start day.
// Fields a resource type does not use are zero.
type BatchKey struct {
	AggregatorID  int64
	SiteID        int64
	ReadingTypeID int64
	TariffID      int64
	Day           string
}

func (k BatchKey) String() string {
	switch {
	case k.Day != "":
		return fmt.Sprintf("agg=%d site=%d tariff=%d day=%s", k.AggregatorID, k.SiteID, k.TariffID, k.Day)
	case k.ReadingTypeID != 0:
		return fmt.Sprintf("agg=%d site=%d srt=%d", k.AggregatorID, k.SiteID, k.ReadingTypeID)
	default:
		return fmt.Sprintf("agg=%d site=%d", k.AggregatorID, k.SiteID)
	}
}

// BatchKeyFor returns the batch key of e, which must be of type rt.
func BatchKeyFor(rt resource.ResourceType, e resource.Entity) (BatchKey, error) {
	if err := checkEntity(rt, e); err != nil {
		return BatchKey{}, err
	}

	site := e.Owner()
	key := BatchKey{AggregatorID: site.AggregatorID, SiteID: site.SiteID}
	switch v := e.(type) {
	case resource.Site, resource.DynamicOperatingEnvelope:
	case resource.Reading:
		key.ReadingTypeID = v.ReadingType.SiteReadingTypeID
	case resource.TariffGeneratedRate:
		key.TariffID = v.TariffID
		key.Day = v.LocalStartDate()
	}
	return key, nil
}

// SubscriptionFilterID returns the value compared against a subscription's
// ResourceID: the site ID for sites, the reading type for readings, the
// envelope's own ID for DOEs and the tariff for rates.
func SubscriptionFilterID(rt resource.ResourceType, e resource.Entity) (int64, error) {
	if err := checkEntity(rt, e); err != nil {
		return 0, err
	}

	switch v := e.(type) {
	case resource.Site:
		return v.SiteID, nil
	case resource.Reading:
		return v.ReadingType.SiteReadingTypeID, nil
	case resource.DynamicOperatingEnvelope:
		return v.DynamicOperatingEnvelopeID, nil
	case resource.TariffGeneratedRate:
		return v.TariffID, nil
	}
	return 0, fmt.Errorf("%w: %T", resource.ErrUnsupportedResource, e)
}

// SiteIDFor returns the site e belongs to.
func SiteIDFor(rt resource.ResourceType, e resource.Entity) (int64, error) {
	if err := checkEntity(rt, e); err != nil {
		return 0, err
	}
	return e.Owner().SiteID, nil
}

// checkEntity rejects resource types outside the watched set and entities
// that are not of type rt.
func checkEntity(rt resource.ResourceType, e resource.Entity) error {
	if !rt.Valid() {
		return fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, rt)
	}
	if e == nil {
		return fmt.Errorf("%w: nil entity for %s", resource.ErrEntityMismatch, rt)
	}
	if e.ResourceType() != rt {
		return fmt.Errorf("%w: %T is not a %s", resource.ErrEntityMismatch, e, rt)
	}
	return nil
}
