package notification

import (
	"fmt"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/subscription"
)

// EntitiesServicedBy returns the entities sub should be notified about,
// in input order.
//
// A subscription for another resource type matches nothing. Otherwise an
// entity is kept when it matches the subscription's ResourceID and
// ScopedSiteID (where set) and satisfies every one of its conditions.
// Conditions are ANDed, so two conditions with disjoint ranges keep
// nothing.
func EntitiesServicedBy(sub subscription.Subscription, rt resource.ResourceType, entities []resource.Entity) ([]resource.Entity, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("%w: %s", resource.ErrUnsupportedResource, rt)
	}
	if sub.ResourceType != rt {
		return nil, nil
	}

	var out []resource.Entity
	for _, e := range entities {
		ok, err := services(sub, rt, e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func services(sub subscription.Subscription, rt resource.ResourceType, e resource.Entity) (bool, error) {
	if sub.ResourceID != nil {
		id, err := SubscriptionFilterID(rt, e)
		if err != nil {
			return false, err
		}
		if id != *sub.ResourceID {
			return false, nil
		}
	}

	if sub.ScopedSiteID != nil {
		siteID, err := SiteIDFor(rt, e)
		if err != nil {
			return false, err
		}
		if siteID != *sub.ScopedSiteID {
			return false, nil
		}
	}

	for _, c := range sub.Conditions {
		if !satisfies(c, e) {
			return false, nil
		}
	}
	return true, nil
}

// satisfies tests one condition. An entity without the tested attribute
// never satisfies it.
func satisfies(c subscription.Condition, e resource.Entity) bool {
	switch c.Attribute {
	case subscription.AttributeReadingValue:
		r, ok := e.(resource.Reading)
		return ok && c.InRange(r.Value)
	default:
		return false
	}
}
