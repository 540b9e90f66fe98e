package notification

import (
	"iter"

	"github.com/google/uuid"

	"github.com/nerrad567/sep2-core/internal/resource"
	"github.com/nerrad567/sep2-core/internal/subscription"
)

// Envelope is one page of entities bound for one subscription.
type Envelope struct {
	// NotificationID is unique per envelope and reused by every retry of
	// its delivery.
	NotificationID uuid.UUID

	ResourceType resource.ResourceType
	Subscription subscription.Subscription
	SiteID       int64
	Entities     []resource.Entity

	// PriceType is set for rate envelopes only.
	PriceType resource.PriceType
}

// Batched splits items into consecutive chunks of at most size items. The
// last chunk holds the remainder. A size below one is treated as one.
func Batched[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// Pages yields one envelope per page of entities for sub. Rate entities are
// paged once per price type, giving four times as many envelopes.
func Pages(rt resource.ResourceType, sub subscription.Subscription, key BatchKey, pageSize int, entities []resource.Entity) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		chunks := Batched(entities, pageSize)

		priceTypes := []resource.PriceType{0}
		if rt == resource.TypeTariffGeneratedRate {
			priceTypes = resource.PriceTypes()
		}

		for _, pt := range priceTypes {
			for _, chunk := range chunks {
				env := Envelope{
					NotificationID: uuid.New(),
					ResourceType:   rt,
					Subscription:   sub,
					SiteID:         key.SiteID,
					Entities:       chunk,
					PriceType:      pt,
				}
				if !yield(env) {
					return
				}
			}
		}
	}
}
