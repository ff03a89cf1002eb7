package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/adapter"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// DefaultKeyPrefix prefixes every snapshot key
const DefaultKeyPrefix = "ff-reducer"

// SnapshotCache keeps the latest committed snapshot of every entity in Redis
type SnapshotCache struct {
	client adapter.RedisClient
	prefix string
	ttl    time.Duration
}

// New creates a snapshot cache. A zero ttl keeps snapshots until they are replaced or deleted.
func New(client adapter.RedisClient, prefix string, ttl time.Duration) *SnapshotCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SnapshotCache{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the Redis key of an entity
func (c *SnapshotCache) Key(ref domain.EntityRef) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, ref.Kind, ref.ID)
}

// Get returns the cached snapshot. The second result is false on a miss.
func (c *SnapshotCache) Get(ctx context.Context, ref domain.EntityRef) (updater.Snapshot, bool, error) {
	data, err := c.client.Get(ctx, c.Key(ref))
	if errors.Is(err, adapter.ErrCacheMiss) {
		return updater.Snapshot{}, false, nil
	}
	if err != nil {
		return updater.Snapshot{}, false, fmt.Errorf("failed to read cached %s: %w", ref, err)
	}

	var snapshot updater.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.WarnCtx(ctx, "Dropping undecodable cached snapshot", zap.String("key", c.Key(ref)), zap.Error(err))
		return updater.Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (c *SnapshotCache) OnEntityUpdated(ctx context.Context, snapshot updater.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(snapshot.Ref()), data, c.ttl); err != nil {
		return fmt.Errorf("failed to cache %s: %w", snapshot.Ref(), err)
	}
	return nil
}

func (c *SnapshotCache) OnEntityDeleted(ctx context.Context, ref domain.EntityRef) error {
	if err := c.client.Del(ctx, c.Key(ref)); err != nil {
		return fmt.Errorf("failed to evict %s: %w", ref, err)
	}
	return nil
}
