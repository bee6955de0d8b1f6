package services

import (
	"context"
	"errors"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/shopspring/decimal"
)

// bidWriteAttempts bounds the reload-and-revalidate loop on conditional
// update conflicts.
const bidWriteAttempts = 3

type CreateAuctionRequest struct {
	ItemID        int64
	StartingPrice decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	PublicAccess  bool
}

// UpdateAuctionPatch carries only the fields the seller wants to change.
type UpdateAuctionPatch struct {
	StartingPrice *decimal.Decimal
	StartDate     *time.Time
	EndDate       *time.Time
	PublicAccess  *bool
}

// Finalizer is the cache manager's finalize entry point, shared with
// seller-initiated close.
type Finalizer interface {
	Finalize(ctx context.Context, auctionID int64) (*domain.Auction, error)
}

// Coordinator owns the auction lifecycle: every mutation of the durable row
// funnels through here.
type Coordinator struct {
	repo       domain.AuctionRepository
	snapshots  domain.SnapshotCache
	access     *AccessControl
	eventPub   domain.EventPublisher
	itemClient domain.ItemClient
	userClient domain.UserClient
	finalizer  Finalizer
	feed       domain.FeedBroadcaster
	log        logger.Logger
	now        func() time.Time
}

func NewCoordinator(
	repo domain.AuctionRepository,
	snapshots domain.SnapshotCache,
	access *AccessControl,
	eventPub domain.EventPublisher,
	itemClient domain.ItemClient,
	userClient domain.UserClient,
	finalizer Finalizer,
	feed domain.FeedBroadcaster,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		repo:       repo,
		snapshots:  snapshots,
		access:     access,
		eventPub:   eventPub,
		itemClient: itemClient,
		userClient: userClient,
		finalizer:  finalizer,
		feed:       feed,
		log:        log,
		now:        time.Now,
	}
}

// Create persists a new scheduled auction after verifying item ownership and
// the auction window. The created event is published best-effort; downstream
// services rebuild their state from it, so failures are logged loudly.
func (c *Coordinator) Create(ctx context.Context, req CreateAuctionRequest, sellerID int64) (*domain.Auction, error) {
	existing, err := c.repo.GetByItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAuctionAlreadyExists()
	}

	owner, err := c.itemClient.SellerOf(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if owner != sellerID {
		return nil, domain.ErrAuctionNotAvailable()
	}

	now := c.now()
	if !req.StartDate.Before(req.EndDate) || !req.StartDate.After(now) {
		return nil, domain.ErrInvalidAuctionWindow()
	}

	auction := &domain.Auction{
		ItemID:        req.ItemID,
		SellerID:      sellerID,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Finished:      false,
		PublicAccess:  req.PublicAccess,
		Version:       1,
	}

	id, err := c.repo.Create(ctx, auction)
	if err != nil {
		return nil, err
	}
	auction.ID = id
	c.log.Info("Auction saved", "auction_id", id)

	event := domain.AuctionItemEvent{AuctionID: id, ItemID: auction.ItemID}
	if err := c.eventPub.Publish(ctx, domain.TopicAuctionCreated, event); err != nil {
		c.log.Error("Failed to send auction created event", "auction_id", id, "error", err)
	}

	return auction, nil
}

// Get is a cache-aside read followed by the visibility check: public
// auctions and the seller always pass, private ones require participant
// membership.
func (c *Coordinator) Get(ctx context.Context, auctionID, requesterID int64) (*domain.Auction, error) {
	auction, err := c.load(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	if auction.VisibleTo(requesterID) {
		return auction, nil
	}
	member, err := c.access.IsParticipant(ctx, auctionID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		c.log.Warn("No access to auction", "auction_id", auctionID, "user_id", requesterID)
		return nil, domain.ErrNotAParticipant()
	}
	return auction, nil
}

func (c *Coordinator) load(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	snapshot, err := c.snapshots.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		return snapshot.ToAuction(), nil
	}
	return c.repo.Get(ctx, auctionID)
}

// ApplyBid validates and lands one bid event. The conditional update retries
// on version conflicts with a fresh read and re-validation; rejections are
// terminal and never retried. The snapshot refresh is synchronous
// write-through; the new-bid notification is best-effort.
func (c *Coordinator) ApplyBid(ctx context.Context, event *domain.NewBidEvent) error {
	var conflict error
	for attempt := 0; attempt < bidWriteAttempts; attempt++ {
		auction, err := c.repo.Get(ctx, event.AuctionID)
		if err != nil {
			return err
		}

		if err := domain.ValidateBid(auction, event, c.now()); err != nil {
			return err
		}
		c.log.Info("Bid is valid", "auction_id", auction.ID)

		auction.CurrentPrice = event.BidAmount
		bidderID := event.BidderID
		auction.BidderID = &bidderID

		err = c.repo.Update(ctx, auction)
		if errors.Is(err, domain.ErrVersionConflict) {
			conflict = err
			continue
		}
		if err != nil {
			return err
		}
		c.log.Info("Auction saved", "auction_id", auction.ID)

		if err := c.snapshots.PutIfPresent(ctx, domain.SnapshotOf(auction)); err != nil {
			return err
		}

		notification := domain.NewBidNotificationEvent{
			AuctionID: auction.ID,
			ItemID:    auction.ItemID,
			NewBid:    auction.CurrentPrice,
			BidderID:  event.BidderID,
			Timestamp: c.now(),
		}
		if err := c.eventPub.Publish(ctx, domain.TopicNewBidNotification, notification); err != nil {
			c.log.Error("Failed to send new bid notification", "auction_id", auction.ID, "error", err)
		}
		if c.feed != nil {
			c.feed.BroadcastToAuction(auction.ID, feedNewBid(auction))
		}
		return nil
	}
	return domain.ErrStoreFailed("bid write retries exhausted", conflict)
}

// Update applies a bounded patch before the auction starts. Constraint
// violations on the patched fields are rejected, not silently skipped.
func (c *Coordinator) Update(ctx context.Context, auctionID, requesterID int64, patch UpdateAuctionPatch) (*domain.Auction, error) {
	auction, err := c.availableToInteraction(ctx, auctionID, requesterID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if !now.Before(auction.StartDate) {
		return nil, domain.ErrAuctionAlreadyStarted()
	}

	if patch.StartingPrice != nil {
		if !patch.StartingPrice.IsPositive() {
			return nil, domain.ErrInvalidRequest("starting price must be positive")
		}
		auction.StartingPrice = *patch.StartingPrice
		// No bids exist before the start date, so the current price follows.
		auction.CurrentPrice = *patch.StartingPrice
	}
	if patch.StartDate != nil {
		if !patch.StartDate.After(now) || !patch.StartDate.Before(auction.StartDate) {
			return nil, domain.ErrInvalidAuctionWindow()
		}
		auction.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		if !patch.EndDate.After(now) || !patch.EndDate.After(auction.StartDate) {
			return nil, domain.ErrInvalidAuctionWindow()
		}
		auction.EndDate = *patch.EndDate
	}
	if patch.PublicAccess != nil {
		auction.PublicAccess = *patch.PublicAccess
	}

	if err := c.repo.Update(ctx, auction); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, domain.ErrStoreFailed("failed to save auction", err)
		}
		return nil, err
	}
	c.log.Info("Auction saved", "auction_id", auction.ID)

	if err := c.snapshots.PutIfPresent(ctx, domain.SnapshotOf(auction)); err != nil {
		c.log.Error("Failed to refresh cached auction", "auction_id", auction.ID, "error", err)
	}
	return auction, nil
}

// Close is the seller-initiated finalize.
func (c *Coordinator) Close(ctx context.Context, auctionID, requesterID int64) (*domain.Auction, error) {
	if _, err := c.availableToInteraction(ctx, auctionID, requesterID); err != nil {
		return nil, err
	}

	auction, err := c.finalizer.Finalize(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	c.log.Info("Auction closed", "auction_id", auctionID)
	return auction, nil
}

// Delete closes the auction if needed, then removes the row, its snapshot
// and participant set, and announces the removal.
func (c *Coordinator) Delete(ctx context.Context, auctionID, requesterID int64) error {
	auction, err := c.repo.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.SellerID != requesterID {
		return domain.ErrAuctionNotAvailable()
	}

	if _, err := c.finalizer.Finalize(ctx, auctionID); err != nil && !domain.IsCode(err, domain.CodeCacheFailed) {
		return err
	}

	event := domain.AuctionItemEvent{AuctionID: auction.ID, ItemID: auction.ItemID}
	if err := c.eventPub.Publish(ctx, domain.TopicAuctionRemoved, event); err != nil {
		c.log.Error("Failed to send auction removed event", "auction_id", auctionID, "error", err)
	}

	if err := c.repo.Delete(ctx, auctionID); err != nil {
		return err
	}
	if err := c.access.participants.Clear(ctx, auctionID); err != nil {
		c.log.Error("Failed to clear auction participants", "auction_id", auctionID, "error", err)
	}
	c.log.Info("Auction deleted", "auction_id", auctionID)
	return nil
}

func (c *Coordinator) ActivePublic(ctx context.Context) ([]*domain.Auction, error) {
	return c.repo.ListActivePublic(ctx)
}

// ActiveForUser lists the non-finished auctions of other sellers the user
// may see: all public ones plus the private ones they participate in.
func (c *Coordinator) ActiveForUser(ctx context.Context, userID int64) ([]*domain.Auction, error) {
	auctions, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]*domain.Auction, 0, len(auctions))
	for _, auction := range auctions {
		if auction.SellerID == userID {
			continue
		}
		if auction.PublicAccess {
			visible = append(visible, auction)
			continue
		}
		member, err := c.access.IsParticipant(ctx, auction.ID, userID)
		if err != nil {
			return nil, err
		}
		if member {
			visible = append(visible, auction)
		}
	}
	return visible, nil
}

func (c *Coordinator) ActivePrivateForUser(ctx context.Context, userID int64) ([]*domain.Auction, error) {
	auctions, err := c.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	private := make([]*domain.Auction, 0, len(auctions))
	for _, auction := range auctions {
		if !auction.PublicAccess {
			private = append(private, auction)
		}
	}
	return private, nil
}

func (c *Coordinator) BySeller(ctx context.Context, sellerID int64) ([]*domain.Auction, error) {
	return c.repo.ListBySeller(ctx, sellerID)
}

// SellerID backs the internal lookup the bid ledger uses.
func (c *Coordinator) SellerID(ctx context.Context, auctionID int64) (int64, error) {
	auction, err := c.repo.Get(ctx, auctionID)
	if err != nil {
		return 0, err
	}
	return auction.SellerID, nil
}

// SendInvitations resolves the invited emails on the user service and emits
// one invitation event per registered user. Unknown emails are skipped; a
// per-user publish failure does not stop the fan-out.
func (c *Coordinator) SendInvitations(ctx context.Context, auctionID, sellerID int64, emails []string) error {
	auction, err := c.availableToInteraction(ctx, auctionID, sellerID)
	if err != nil {
		return err
	}

	for _, email := range emails {
		userID, found, err := c.userClient.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if !found {
			c.log.Warn("Invited user not found", "auction_id", auctionID, "email", email)
			continue
		}

		event := domain.InvitationEvent{AuctionID: auction.ID, SellerID: sellerID, UserID: userID}
		if err := c.eventPub.Publish(ctx, domain.TopicAuctionInvitation, event); err != nil {
			c.log.Warn("Failed to send invitation", "auction_id", auction.ID, "user_id", userID, "error", err)
			continue
		}
		c.log.Info("Invitation sent", "auction_id", auction.ID, "user_id", userID)
	}
	return nil
}

// ProcessAcceptance grants participant membership when an invited user
// accepts. Declines are a no-op.
func (c *Coordinator) ProcessAcceptance(ctx context.Context, event *domain.AcceptanceEvent) error {
	auction, err := c.repo.Get(ctx, event.AuctionID)
	if err != nil {
		return err
	}
	if auction.Finished {
		return domain.ErrAuctionNotAvailable()
	}
	if !event.Acceptance {
		return nil
	}
	return c.access.Grant(ctx, event.AuctionID, event.UserID)
}

// RemoveParticipant is the seller revoking a user's visibility; the removed
// user is notified best-effort.
func (c *Coordinator) RemoveParticipant(ctx context.Context, auctionID, requesterID, userID int64) error {
	auction, err := c.availableToInteraction(ctx, auctionID, requesterID)
	if err != nil {
		return err
	}

	if err := c.access.Revoke(ctx, auctionID, userID); err != nil {
		return err
	}

	notification := domain.UserRemovedNotificationEvent{
		AuctionID: auction.ID,
		ItemID:    auction.ItemID,
		UserID:    userID,
		Timestamp: c.now(),
	}
	if err := c.eventPub.Publish(ctx, domain.TopicUserRemovedNotification, notification); err != nil {
		c.log.Error("Failed to send user removed notification", "auction_id", auctionID, "error", err)
	}
	return nil
}

// availableToInteraction gates seller-only mutations: the auction must exist,
// belong to the requester, and not be finished.
func (c *Coordinator) availableToInteraction(ctx context.Context, auctionID, userID int64) (*domain.Auction, error) {
	auction, err := c.repo.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Finished || auction.SellerID != userID {
		return nil, domain.ErrAuctionNotAvailable()
	}
	return auction, nil
}

type feedMessage struct {
	Type      string `json:"type"`
	AuctionID int64  `json:"auction_id"`
	Price     string `json:"price"`
	BidderID  *int64 `json:"bidder_id,omitempty"`
}

func feedNewBid(auction *domain.Auction) feedMessage {
	return feedMessage{
		Type:      "new_bid",
		AuctionID: auction.ID,
		Price:     auction.CurrentPrice.String(),
		BidderID:  auction.BidderID,
	}
}

func feedAuctionFinished(auction *domain.Auction) feedMessage {
	return feedMessage{
		Type:      "auction_finished",
		AuctionID: auction.ID,
		Price:     auction.CurrentPrice.String(),
	}
}
