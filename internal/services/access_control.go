package services

import (
	"context"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"
)

// AccessControl owns the participant set of private auctions. Nothing else
// writes membership.
type AccessControl struct {
	participants domain.ParticipantStore
	log          logger.Logger
}

func NewAccessControl(participants domain.ParticipantStore, log logger.Logger) *AccessControl {
	return &AccessControl{participants: participants, log: log}
}

// Grant adds the user to the auction's participant set. A zero-effect add
// means the cache did not record the membership and is surfaced, not
// swallowed.
func (ac *AccessControl) Grant(ctx context.Context, auctionID, userID int64) error {
	added, err := ac.participants.Add(ctx, auctionID, userID)
	if err != nil {
		return err
	}
	if !added {
		return domain.ErrCacheFailed("participant grant had no effect", nil)
	}
	ac.log.Info("User added to auction", "auction_id", auctionID, "user_id", userID)
	return nil
}

// Revoke removes the user; a zero-effect removal is reported the same way.
// Callers distinguish "was not a member" from "cache unreachable" by
// unwrapping the transport error.
func (ac *AccessControl) Revoke(ctx context.Context, auctionID, userID int64) error {
	removed, err := ac.participants.Remove(ctx, auctionID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrCacheFailed("participant revoke had no effect", nil)
	}
	ac.log.Info("User removed from auction", "auction_id", auctionID, "user_id", userID)
	return nil
}

func (ac *AccessControl) IsParticipant(ctx context.Context, auctionID, userID int64) (bool, error) {
	return ac.participants.Contains(ctx, auctionID, userID)
}
