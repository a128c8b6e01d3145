package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/safebase-monitor/internal/types"
)

// SnapshotHistory keeps a bounded ring of recent snapshots per watched
// address in Redis. Entries are only ever appended and read in order;
// oldest entries are evicted first once the ring is full.
type SnapshotHistory struct {
	cache    *RedisCache
	capacity int
}

// NewSnapshotHistory creates a snapshot history with the given per-address capacity
func NewSnapshotHistory(cache *RedisCache, capacity int) *SnapshotHistory {
	if capacity <= 0 {
		capacity = 50
	}
	return &SnapshotHistory{cache: cache, capacity: capacity}
}

// Key format: history:<user>:<address>
func (h *SnapshotHistory) key(userID, address string) string {
	return strings.Join([]string{"history", strings.ToLower(userID), strings.ToLower(address)}, ":")
}

// Append records a snapshot at the head of the ring and evicts beyond capacity.
func (h *SnapshotHistory) Append(ctx context.Context, userID, address string, snap *types.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := h.key(userID, address)
	client := h.cache.Client()

	if err := client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	if err := client.LTrim(ctx, key, 0, int64(h.capacity-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim snapshot history: %w", err)
	}

	return nil
}

// Latest returns the most recent snapshot, or nil when none exists.
func (h *SnapshotHistory) Latest(ctx context.Context, userID, address string) (*types.Snapshot, error) {
	data, err := h.cache.Client().LIndex(ctx, h.key(userID, address), 0).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest snapshot: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// Recent returns up to n snapshots in time order, most recent last.
func (h *SnapshotHistory) Recent(ctx context.Context, userID, address string, n int) ([]types.Snapshot, error) {
	if n <= 0 || n > h.capacity {
		n = h.capacity
	}

	items, err := h.cache.Client().LRange(ctx, h.key(userID, address), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot history: %w", err)
	}

	// Stored newest-first; reverse so the most recent entry comes last.
	snaps := make([]types.Snapshot, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var snap types.Snapshot
		if err := json.Unmarshal([]byte(items[i]), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	return snaps, nil
}

// Delete removes the address's entire history. Called on watchlist removal.
func (h *SnapshotHistory) Delete(ctx context.Context, userID, address string) error {
	return h.cache.Del(ctx, h.key(userID, address))
}
