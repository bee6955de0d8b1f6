package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"
)

// CacheManager keeps the snapshot cache consistent with the durable store:
// it pre-warms snapshots for auctions ending soon and finalizes expired ones.
type CacheManager struct {
	repo          domain.AuctionRepository
	snapshots     domain.SnapshotCache
	eventPub      domain.EventPublisher
	feed          domain.FeedBroadcaster
	prewarmWindow time.Duration
	log           logger.Logger
	now           func() time.Time

	// finalize is serialized per auction id; the pre-warm and finalize
	// sweeps racing on one auction converge on the next tick.
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewCacheManager(
	repo domain.AuctionRepository,
	snapshots domain.SnapshotCache,
	eventPub domain.EventPublisher,
	feed domain.FeedBroadcaster,
	prewarmWindow time.Duration,
	log logger.Logger,
) *CacheManager {
	return &CacheManager{
		repo:          repo,
		snapshots:     snapshots,
		eventPub:      eventPub,
		feed:          feed,
		prewarmWindow: prewarmWindow,
		log:           log,
		now:           time.Now,
		locks:         make(map[int64]*sync.Mutex),
	}
}

// PrewarmSweep bulk-caches snapshots of non-finished auctions ending within
// the pre-warm window. An empty result set is a no-op.
func (cm *CacheManager) PrewarmSweep(ctx context.Context) error {
	now := cm.now()
	auctions, err := cm.repo.ListEndingBetween(ctx, now, now.Add(cm.prewarmWindow))
	if err != nil {
		return err
	}

	snapshots := make([]*domain.Snapshot, 0, len(auctions))
	for _, auction := range auctions {
		if auction.Finished {
			continue
		}
		snapshots = append(snapshots, domain.SnapshotOf(auction))
	}
	if len(snapshots) == 0 {
		cm.log.Info("No auctions ending soon")
		return nil
	}

	if err := cm.snapshots.PutAll(ctx, snapshots); err != nil {
		return err
	}
	cm.log.Info("Auctions cached", "count", len(snapshots))
	return nil
}

// FinalizeSweep scans the cached snapshots and finalizes every auction whose
// end date has passed. Per-auction failures are logged and the scan
// continues.
func (cm *CacheManager) FinalizeSweep(ctx context.Context) error {
	snapshots, err := cm.snapshots.List(ctx)
	if err != nil {
		return err
	}

	now := cm.now()
	for _, snapshot := range snapshots {
		if !snapshot.EndDate.Before(now) {
			continue
		}
		if _, err := cm.Finalize(ctx, snapshot.AuctionID); err != nil {
			cm.log.Error("Failed to finalize auction", "auction_id", snapshot.AuctionID, "error", err)
		}
	}
	return nil
}

// Finalize marks the auction finished against the durable store, emits the
// finished notification best-effort, and evicts the snapshot. Idempotent: an
// already-finished auction is not re-persisted and not re-announced. A failed
// eviction surfaces a cache error, but the durable finished flag stands.
func (cm *CacheManager) Finalize(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	lock := cm.lockFor(auctionID)
	lock.Lock()
	defer lock.Unlock()

	auction, err := cm.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if !auction.Finished {
		auction.Finished = true
		if err := cm.repo.Update(ctx, auction); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				// A bid landed between read and write; the re-read still
				// finishes the auction.
				return cm.retryFinalizeWrite(ctx, auctionID)
			}
			return nil, err
		}
		cm.log.Info("Auction set finished", "auction_id", auctionID)
		cm.announceFinished(ctx, auction)
	}

	if err := cm.snapshots.Remove(ctx, auctionID); err != nil {
		cm.log.Error("Failed to remove auction from cache", "auction_id", auctionID, "error", err)
		return auction, err
	}
	return auction, nil
}

func (cm *CacheManager) retryFinalizeWrite(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	auction, err := cm.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !auction.Finished {
		auction.Finished = true
		if err := cm.repo.Update(ctx, auction); err != nil {
			return nil, err
		}
		cm.announceFinished(ctx, auction)
	}
	if err := cm.snapshots.Remove(ctx, auctionID); err != nil {
		return auction, err
	}
	return auction, nil
}

func (cm *CacheManager) announceFinished(ctx context.Context, auction *domain.Auction) {
	event := domain.AuctionFinishedNotificationEvent{
		AuctionID:  auction.ID,
		ItemID:     auction.ItemID,
		FinalPrice: auction.CurrentPrice,
		Timestamp:  cm.now(),
	}
	if err := cm.eventPub.Publish(ctx, domain.TopicAuctionFinishedNotification, event); err != nil {
		cm.log.Error("Failed to send finished notification", "auction_id", auction.ID, "error", err)
	}
	if cm.feed != nil {
		cm.feed.BroadcastToAuction(auction.ID, feedAuctionFinished(auction))
		cm.feed.CloseAuction(auction.ID)
	}
}

func (cm *CacheManager) lockFor(auctionID int64) *sync.Mutex {
	cm.locksMu.Lock()
	defer cm.locksMu.Unlock()

	lock, exists := cm.locks[auctionID]
	if !exists {
		lock = &sync.Mutex{}
		cm.locks[auctionID] = lock
	}
	return lock
}
