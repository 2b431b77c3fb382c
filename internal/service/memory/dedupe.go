package memory

import (
	"context"
	"time"
)

type hashSource interface {
	RecentHashes(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// DedupeIndex is the set of content hashes seen within the dedupe window.
// It is rebuilt on every capture and grows in memory as the turn is processed.
type DedupeIndex struct {
	enabled bool
	seen    map[string]struct{}
}

// LoadDedupeIndex reads the hashes of items created in [now-window, now],
// capped at maxCheck newest rows. A zero window returns a disabled index
// without touching the store.
func LoadDedupeIndex(ctx context.Context, src hashSource, now time.Time, window time.Duration, maxCheck int) (*DedupeIndex, error) {
	idx := &DedupeIndex{seen: make(map[string]struct{})}
	if window <= 0 {
		return idx, nil
	}
	idx.enabled = true

	hashes, err := src.RecentHashes(ctx, now.Add(-window), maxCheck)
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		idx.seen[h] = struct{}{}
	}
	return idx, nil
}

func (d *DedupeIndex) Enabled() bool {
	return d.enabled
}

// Seen is always false for a disabled index.
func (d *DedupeIndex) Seen(hash string) bool {
	if !d.enabled {
		return false
	}
	_, ok := d.seen[hash]
	return ok
}

func (d *DedupeIndex) Add(hash string) {
	if d.enabled {
		d.seen[hash] = struct{}{}
	}
}

func (d *DedupeIndex) Len() int {
	return len(d.seen)
}
