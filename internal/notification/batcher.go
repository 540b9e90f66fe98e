package notification

import (
	"iter"
	"time"

	"github.com/nerrad567/sep2-core/internal/resource"
)

// Batches holds the entities of one change event grouped by BatchKey.
//
// Keys are kept in the order they were first seen and entities keep their
// input order within a key. Every input entity lands in exactly one batch.
type Batches struct {
	ChangedAt    time.Time
	ResourceType resource.ResourceType

	keys  []BatchKey
	byKey map[BatchKey][]resource.Entity
}

// NewBatches groups entities, all of type rt and all written at changedAt.
// An empty input gives empty batches.
func NewBatches(changedAt time.Time, rt resource.ResourceType, entities []resource.Entity) (*Batches, error) {
	b := &Batches{
		ChangedAt:    changedAt,
		ResourceType: rt,
		byKey:        make(map[BatchKey][]resource.Entity),
	}
	for _, e := range entities {
		key, err := BatchKeyFor(rt, e)
		if err != nil {
			return nil, err
		}
		if _, seen := b.byKey[key]; !seen {
			b.keys = append(b.keys, key)
		}
		b.byKey[key] = append(b.byKey[key], e)
	}
	return b, nil
}

// Len is the number of distinct batch keys.
func (b *Batches) Len() int {
	return len(b.keys)
}

// Keys returns the batch keys in first-seen order.
func (b *Batches) Keys() []BatchKey {
	return append([]BatchKey(nil), b.keys...)
}

// Entities returns the entities batched under key.
func (b *Batches) Entities(key BatchKey) []resource.Entity {
	return b.byKey[key]
}

// All yields each batch key with its entities in first-seen order.
func (b *Batches) All() iter.Seq2[BatchKey, []resource.Entity] {
	return func(yield func(BatchKey, []resource.Entity) bool) {
		for _, key := range b.keys {
			if !yield(key, b.byKey[key]) {
				return
			}
		}
	}
}

// AggregatorIDs returns each distinct aggregator once, in first-seen order.
func (b *Batches) AggregatorIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, key := range b.keys {
		if _, ok := seen[key.AggregatorID]; ok {
			continue
		}
		seen[key.AggregatorID] = struct{}{}
		ids = append(ids, key.AggregatorID)
	}
	return ids
}
