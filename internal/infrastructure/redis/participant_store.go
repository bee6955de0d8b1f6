package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"

	"github.com/go-redis/redis/v8"
)

func participantKey(auctionID int64) string {
	return fmt.Sprintf("auction:%d:users", auctionID)
}

// RedisParticipantStore keeps the per-auction set of user ids allowed to see
// a private auction, as string-encoded members of auction:{id}:users.
type RedisParticipantStore struct {
	client *redis.Client
}

func NewRedisParticipantStore(client *redis.Client) *RedisParticipantStore {
	return &RedisParticipantStore{client: client}
}

func (s *RedisParticipantStore) Add(ctx context.Context, auctionID, userID int64) (bool, error) {
	var added int64
	err := withRetry(ctx, func() error {
		result, err := s.client.SAdd(ctx, participantKey(auctionID), strconv.FormatInt(userID, 10)).Result()
		if err != nil {
			return err
		}
		added = result
		return nil
	})
	if err != nil {
		return false, domain.ErrCacheFailed("failed to save user for auction", err)
	}
	return added > 0, nil
}

func (s *RedisParticipantStore) Remove(ctx context.Context, auctionID, userID int64) (bool, error) {
	var removed int64
	err := withRetry(ctx, func() error {
		result, err := s.client.SRem(ctx, participantKey(auctionID), strconv.FormatInt(userID, 10)).Result()
		if err != nil {
			return err
		}
		removed = result
		return nil
	})
	if err != nil {
		return false, domain.ErrCacheFailed("failed to remove user from auction", err)
	}
	return removed > 0, nil
}

func (s *RedisParticipantStore) Contains(ctx context.Context, auctionID, userID int64) (bool, error) {
	var member bool
	err := withRetry(ctx, func() error {
		result, err := s.client.SIsMember(ctx, participantKey(auctionID), strconv.FormatInt(userID, 10)).Result()
		if err != nil {
			return err
		}
		member = result
		return nil
	})
	if err != nil {
		return false, domain.ErrCacheFailed("failed to check auction participant", err)
	}
	return member, nil
}

func (s *RedisParticipantStore) Clear(ctx context.Context, auctionID int64) error {
	err := withRetry(ctx, func() error {
		return s.client.Del(ctx, participantKey(auctionID)).Err()
	})
	if err != nil {
		return domain.ErrCacheFailed("failed to clear auction participants", err)
	}
	return nil
}
