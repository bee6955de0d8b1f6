package domain

import "time"

// ValidateBid decides whether a candidate bid may land on the auction. Pure
// decision function: persisting, caching and publishing happen in the
// coordinator only after acceptance.
//
// Rules, in order: the seller may not bid on their own auction, the auction
// must be open at bid time, and the amount must beat the current price.
func ValidateBid(auction *Auction, bid *NewBidEvent, now time.Time) error {
	if bid.BidderID == auction.SellerID {
		return ErrBidRejected(RejectSellerOwnAuction)
	}
	if now.Before(auction.StartDate) || now.After(auction.EndDate) || auction.Finished {
		return ErrBidRejected(RejectAuctionNotOpen)
	}
	if bid.BidAmount.Cmp(auction.CurrentPrice) <= 0 {
		return ErrBidRejected(RejectBidTooLow)
	}
	return nil
}
