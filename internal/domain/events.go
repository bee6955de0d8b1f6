package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bus topics. Names are shared with the other marketplace services; changing
// them is a cross-service migration.
const (
	TopicNewBid                      = "new-bid-events"
	TopicAcceptance                  = "acceptance-events"
	TopicAuctionInvitation           = "auction-invitations-events"
	TopicNewBidNotification          = "new-bid-notification-events"
	TopicAuctionFinishedNotification = "auction-finished-notification-events"
	TopicAuctionCreated              = "auction-created-events"
	TopicAuctionRemoved              = "delete-auction-events"
	TopicUserRemovedNotification     = "user-removed-notification-events"
)

// NewBidEvent arrives from the bid ledger service.
type NewBidEvent struct {
	BidID     int64           `json:"bid_id"`
	AuctionID int64           `json:"auction_id"`
	BidAmount decimal.Decimal `json:"bid_amount"`
	BidderID  int64           `json:"bidder_id"`
}

// AcceptanceEvent arrives from the invitation service when an invited user
// answers.
type AcceptanceEvent struct {
	AuctionID  int64 `json:"auction_id"`
	UserID     int64 `json:"user_id"`
	Acceptance bool  `json:"acceptance"`
}

type InvitationEvent struct {
	AuctionID int64 `json:"auction_id"`
	SellerID  int64 `json:"seller_id"`
	UserID    int64 `json:"user_id"`
}

type NewBidNotificationEvent struct {
	AuctionID int64           `json:"auction_id"`
	ItemID    int64           `json:"item_id"`
	NewBid    decimal.Decimal `json:"new_bid"`
	BidderID  int64           `json:"bidder_id"`
	Timestamp time.Time       `json:"timestamp"`
}

type AuctionFinishedNotificationEvent struct {
	AuctionID  int64           `json:"auction_id"`
	ItemID     int64           `json:"item_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
	Timestamp  time.Time       `json:"timestamp"`
}

// AuctionItemEvent is the payload for both created and removed lifecycle
// events.
type AuctionItemEvent struct {
	AuctionID int64 `json:"auction_id"`
	ItemID    int64 `json:"item_id"`
}

type UserRemovedNotificationEvent struct {
	AuctionID int64     `json:"auction_id"`
	ItemID    int64     `json:"item_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}
