package domain

import (
	"context"
	"time"
)

// AuctionRepository is the durable store, the single writer of truth.
type AuctionRepository interface {
	// Create persists a new auction and returns the store-assigned id.
	Create(ctx context.Context, auction *Auction) (int64, error)
	// Get returns the auction or a CodeAuctionNotFound error.
	Get(ctx context.Context, auctionID int64) (*Auction, error)
	// GetByItem returns (nil, nil) when no auction exists for the item.
	GetByItem(ctx context.Context, itemID int64) (*Auction, error)
	// Update writes all mutable fields conditionally on auction.Version and
	// bumps it; a lost race returns ErrVersionConflict.
	Update(ctx context.Context, auction *Auction) error
	Delete(ctx context.Context, auctionID int64) error
	ListBySeller(ctx context.Context, sellerID int64) ([]*Auction, error)
	ListActivePublic(ctx context.Context) ([]*Auction, error)
	ListActive(ctx context.Context) ([]*Auction, error)
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]*Auction, error)
}

// SnapshotCache holds the denormalized auction mirrors under auctions:{id}.
type SnapshotCache interface {
	// Get returns (nil, nil) on a cache miss.
	Get(ctx context.Context, auctionID int64) (*Snapshot, error)
	Put(ctx context.Context, snapshot *Snapshot) error
	// PutIfPresent refreshes an existing snapshot and is a no-op on a miss;
	// the bid path never primes the cache, the pre-warm sweep does.
	PutIfPresent(ctx context.Context, snapshot *Snapshot) error
	PutAll(ctx context.Context, snapshots []*Snapshot) error
	Remove(ctx context.Context, auctionID int64) error
	// List scans every cached snapshot; the finalize sweep's input.
	List(ctx context.Context) ([]*Snapshot, error)
}

// ParticipantStore is the auction:{id}:users membership set behind private
// auction visibility. The boolean results report zero-effect operations.
type ParticipantStore interface {
	Add(ctx context.Context, auctionID, userID int64) (bool, error)
	Remove(ctx context.Context, auctionID, userID int64) (bool, error)
	Contains(ctx context.Context, auctionID, userID int64) (bool, error)
	Clear(ctx context.Context, auctionID int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// EventHandler receives the raw payload of one bus message. A non-nil return
// is logged by the subscriber; it does not tear the subscription down.
type EventHandler func(payload []byte) error

type EventSubscriber interface {
	// Subscribe blocks until ctx is cancelled, delivering messages one at a
	// time in arrival order.
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
}

// ItemClient resolves item ownership on the item-catalog service.
type ItemClient interface {
	SellerOf(ctx context.Context, itemID int64) (int64, error)
}

// UserClient resolves registered users on the user service. A missing email
// yields found=false, not an error.
type UserClient interface {
	FindByEmail(ctx context.Context, email string) (userID int64, found bool, err error)
}

// FeedBroadcaster pushes live updates to websocket watchers, best-effort.
// CloseAuction drops every watcher once the auction is finished.
type FeedBroadcaster interface {
	BroadcastToAuction(auctionID int64, message interface{})
	CloseAuction(auctionID int64)
}
