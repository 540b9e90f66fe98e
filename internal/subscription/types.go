package subscription

import (
	"fmt"
	"net/url"
	"time"

	"github.com/nerrad567/sep2-core/internal/resource"
)

// Attribute names the entity value a Condition tests.
type Attribute int

// AttributeReadingValue tests Reading.Value. It is the only attribute today.
const AttributeReadingValue Attribute = 0

// Condition is an inclusive numeric range. A nil bound is unbounded on that side.
type Condition struct {
	Attribute      Attribute
	LowerThreshold *int64
	UpperThreshold *int64
}

// InRange reports whether v lies within the condition's bounds.
func (c Condition) InRange(v int64) bool {
	if c.LowerThreshold != nil && v < *c.LowerThreshold {
		return false
	}
	if c.UpperThreshold != nil && v > *c.UpperThreshold {
		return false
	}
	return true
}

// Subscription is a client registration for notifications about one resource type.
type Subscription struct {
	ID           int64
	AggregatorID int64
	ResourceType resource.ResourceType

	// ResourceID restricts matches to one target: a site ID, a site
	// reading type ID, a DOE ID or a tariff ID depending on ResourceType.
	ResourceID *int64

	// ScopedSiteID restricts matches to entities under one site.
	ScopedSiteID *int64

	NotificationURI string

	// EntityLimit is the requested page size. Zero is treated as one.
	EntityLimit int

	// Conditions must all hold for an entity to match. Empty matches everything.
	Conditions []Condition

	ChangedTime time.Time
}

// PageSize clamps EntityLimit into [1, limit].
func (s Subscription) PageSize(limit int) int {
	size := s.EntityLimit
	if size > limit {
		size = limit
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Href is the subscription's resource path, used to correlate deliveries
// in logs. Aggregator wide subscriptions live under end device 0.
func Href(s Subscription) string {
	var site int64
	if s.ScopedSiteID != nil {
		site = *s.ScopedSiteID
	}
	return fmt.Sprintf("/edev/%d/sub/%d", site, s.ID)
}

// Validate checks the fields a subscription needs before it is stored.
func (s Subscription) Validate() error {
	if s.AggregatorID <= 0 {
		return fmt.Errorf("%w: aggregator id is required", ErrInvalidSubscription)
	}
	if !s.ResourceType.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidSubscription, resource.ErrUnsupportedResource)
	}
	u, err := url.Parse(s.NotificationURI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: notification uri %q must be an absolute http(s) URL", ErrInvalidSubscription, s.NotificationURI)
	}
	if s.EntityLimit < 0 {
		return fmt.Errorf("%w: entity limit must not be negative", ErrInvalidSubscription)
	}
	for i, c := range s.Conditions {
		if c.Attribute != AttributeReadingValue {
			return fmt.Errorf("%w: condition %d has unknown attribute %d", ErrInvalidSubscription, i, c.Attribute)
		}
		if c.LowerThreshold != nil && c.UpperThreshold != nil && *c.LowerThreshold > *c.UpperThreshold {
			return fmt.Errorf("%w: condition %d lower threshold exceeds upper", ErrInvalidSubscription, i)
		}
	}
	return nil
}
