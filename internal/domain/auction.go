package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction is the durable, authoritative record. The row is owned exclusively
// by the lifecycle coordinator; snapshots and participant sets are derived
// from it, never the other way around.
type Auction struct {
	ID            int64
	ItemID        int64
	SellerID      int64
	BidderID      *int64
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	Finished      bool
	PublicAccess  bool
	// Version backs the conditional update on concurrent bids.
	Version int64
}

type AuctionStatus int

const (
	AuctionScheduled AuctionStatus = iota
	AuctionOpen
	AuctionFinished
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionScheduled:
		return "scheduled"
	case AuctionOpen:
		return "open"
	case AuctionFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Status derives the lifecycle state from the window and the finished flag.
func (a *Auction) Status(now time.Time) AuctionStatus {
	if a.Finished || now.After(a.EndDate) {
		return AuctionFinished
	}
	if now.Before(a.StartDate) {
		return AuctionScheduled
	}
	return AuctionOpen
}

// VisibleTo reports whether the auction itself is visible to the user without
// consulting the participant set. Private auctions additionally require
// participant membership, which is the access-control gateway's call.
func (a *Auction) VisibleTo(userID int64) bool {
	return a.PublicAccess || a.SellerID == userID
}

// SnapshotSchemaVersion tags cached snapshots so cache and store can be
// verified to agree field for field.
const SnapshotSchemaVersion = 1

// Snapshot is the denormalized cache mirror of an auction row. It is
// eventually consistent with the durable record and actively invalidated on
// finalize.
type Snapshot struct {
	SchemaVersion int             `json:"schema_version"`
	AuctionID     int64           `json:"auction_id"`
	ItemID        int64           `json:"item_id"`
	SellerID      int64           `json:"seller_id"`
	BidderID      *int64          `json:"bidder_id,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Finished      bool            `json:"finished"`
	PublicAccess  bool            `json:"public_access"`
}

func SnapshotOf(a *Auction) *Snapshot {
	return &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		AuctionID:     a.ID,
		ItemID:        a.ItemID,
		SellerID:      a.SellerID,
		BidderID:      a.BidderID,
		StartingPrice: a.StartingPrice,
		CurrentPrice:  a.CurrentPrice,
		StartDate:     a.StartDate,
		EndDate:       a.EndDate,
		Finished:      a.Finished,
		PublicAccess:  a.PublicAccess,
	}
}

func (s *Snapshot) ToAuction() *Auction {
	return &Auction{
		ID:            s.AuctionID,
		ItemID:        s.ItemID,
		SellerID:      s.SellerID,
		BidderID:      s.BidderID,
		StartingPrice: s.StartingPrice,
		CurrentPrice:  s.CurrentPrice,
		StartDate:     s.StartDate,
		EndDate:       s.EndDate,
		Finished:      s.Finished,
		PublicAccess:  s.PublicAccess,
	}
}
