package cachestore

import (
	"context"
)

// Identifies one occurrence as delivered by the gateway. Ids are only unique within a thread.
type OccurrenceKey struct {
	Thread string
	ID     string
}

func (k OccurrenceKey) String() string {
	return k.Thread + "/" + k.ID
}

type CacheStore interface {
	// Reports whether the occurrence was remembered and has not yet expired
	Seen(ctx context.Context, key OccurrenceKey) (bool, error)
	// Records the occurrence, and reports whether it had already been recorded
	Remember(ctx context.Context, key OccurrenceKey) (bool, error)
	Forget(ctx context.Context, key OccurrenceKey) error
}
