package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const snapshotKeyPrefix = "auctions:"

func snapshotKey(auctionID int64) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, auctionID)
}

// RedisSnapshotCache stores one JSON-encoded, schema-versioned snapshot per
// auction under auctions:{id}.
type RedisSnapshotCache struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisSnapshotCache(client *redis.Client, log logger.Logger) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, log: log}
}

func (c *RedisSnapshotCache) Get(ctx context.Context, auctionID int64) (*domain.Snapshot, error) {
	var data string
	var miss bool
	err := withRetry(ctx, func() error {
		result, err := c.client.Get(ctx, snapshotKey(auctionID)).Result()
		if err == redis.Nil {
			// A miss is a result, not a failure to retry.
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		miss = false
		data = result
		return nil
	})
	if err != nil {
		return nil, domain.ErrCacheFailed("failed to get auction from cache", err)
	}
	if miss {
		return nil, nil
	}

	snapshot, err := c.decode([]byte(data))
	if err != nil {
		// An undecodable or foreign-schema entry counts as a miss; the
		// durable store stays authoritative. Evict it so it cannot linger
		// past the auctions the sweeps would otherwise clean up.
		c.evictUnreadable(ctx, snapshotKey(auctionID), err)
		return nil, nil
	}
	return snapshot, nil
}

func (c *RedisSnapshotCache) Put(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return domain.ErrCacheFailed("failed to encode snapshot", err)
	}
	err = withRetry(ctx, func() error {
		return c.client.Set(ctx, snapshotKey(snapshot.AuctionID), data, 0).Err()
	})
	if err != nil {
		return domain.ErrCacheFailed("failed to cache auction", err)
	}
	return nil
}

func (c *RedisSnapshotCache) PutIfPresent(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return domain.ErrCacheFailed("failed to encode snapshot", err)
	}
	err = withRetry(ctx, func() error {
		// XX: refresh only, never prime. The pre-warm sweep decides which
		// auctions deserve a snapshot.
		return c.client.SetXX(ctx, snapshotKey(snapshot.AuctionID), data, 0).Err()
	})
	if err != nil {
		return domain.ErrCacheFailed("failed to refresh cached auction", err)
	}
	return nil
}

func (c *RedisSnapshotCache) PutAll(ctx context.Context, snapshots []*domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pairs := make([]interface{}, 0, len(snapshots)*2)
	for _, snapshot := range snapshots {
		data, err := json.Marshal(snapshot)
		if err != nil {
			return domain.ErrCacheFailed("failed to encode snapshot", err)
		}
		pairs = append(pairs, snapshotKey(snapshot.AuctionID), data)
	}

	err := withRetry(ctx, func() error {
		return c.client.MSet(ctx, pairs...).Err()
	})
	if err != nil {
		return domain.ErrCacheFailed("failed to cache auctions", err)
	}
	return nil
}

func (c *RedisSnapshotCache) Remove(ctx context.Context, auctionID int64) error {
	err := withRetry(ctx, func() error {
		return c.client.Del(ctx, snapshotKey(auctionID)).Err()
	})
	if err != nil {
		return domain.ErrCacheFailed("failed to remove auction from cache", err)
	}
	return nil
}

func (c *RedisSnapshotCache) List(ctx context.Context) ([]*domain.Snapshot, error) {
	var keys []string
	err := withRetry(ctx, func() error {
		keys = keys[:0]
		iter := c.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return iter.Err()
	})
	if err != nil {
		return nil, domain.ErrCacheFailed("failed to scan cached auctions", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	var values []interface{}
	err = withRetry(ctx, func() error {
		result, err := c.client.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}
		values = result
		return nil
	})
	if err != nil {
		return nil, domain.ErrCacheFailed("failed to load cached auctions", err)
	}

	snapshots := make([]*domain.Snapshot, 0, len(values))
	for i, value := range values {
		data, ok := value.(string)
		if !ok {
			continue // key expired between SCAN and MGET
		}
		snapshot, err := c.decode([]byte(data))
		if err != nil {
			c.evictUnreadable(ctx, keys[i], err)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// evictUnreadable deletes a snapshot entry that failed to decode. The finalize
// sweep only sees decodable snapshots, so a corrupt key would otherwise
// survive every sweep; deletion is best-effort and the next pre-warm rewrites
// the entry from the durable row.
func (c *RedisSnapshotCache) evictUnreadable(ctx context.Context, key string, decodeErr error) {
	c.log.Warn("Evicting unreadable snapshot", "key", key, "error", decodeErr)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Error("Failed to evict unreadable snapshot", "key", key, "error", err)
	}
}

func (c *RedisSnapshotCache) decode(data []byte) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.SchemaVersion != domain.SnapshotSchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d, want %d", snapshot.SchemaVersion, domain.SnapshotSchemaVersion)
	}
	return &snapshot, nil
}
