package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"backend-fogtrek/internal/stats"
)

const snapshotTTL = 7 * 24 * time.Hour

// SnapshotCache keeps the latest serialized stats per device in redis so
// clients can read totals without replaying history. A nil client disables
// caching; every method degrades to a no-op.
type SnapshotCache struct {
	redis *redis.Client
}

func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{redis: client}
}

func (c *SnapshotCache) Save(ctx context.Context, deviceID string, st stats.State) error {
	if c.redis == nil {
		return nil
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, snapshotKey(deviceID), payload, snapshotTTL).Err()
}

// Load returns the cached state and whether one existed.
func (c *SnapshotCache) Load(ctx context.Context, deviceID string) (stats.State, bool, error) {
	if c.redis == nil {
		return stats.State{}, false, nil
	}
	payload, err := c.redis.Get(ctx, snapshotKey(deviceID)).Bytes()
	if err == redis.Nil {
		return stats.State{}, false, nil
	}
	if err != nil {
		return stats.State{}, false, err
	}

	var st stats.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return stats.State{}, false, err
	}
	return st, true, nil
}

func (c *SnapshotCache) Delete(ctx context.Context, deviceID string) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, snapshotKey(deviceID)).Err()
}

func snapshotKey(deviceID string) string {
	return "explore:" + deviceID + ":stats"
}
