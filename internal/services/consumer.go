package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"
)

// Consumers binds the inbound bus topics to the coordinator. Each topic runs
// as its own supervised subscription with its own stop handle, so one topic
// can be stopped or crash-looped without affecting the other.
type Consumers struct {
	subscriber  domain.EventSubscriber
	coordinator *Coordinator
	log         logger.Logger

	mu    sync.Mutex
	stops []context.CancelFunc
	done  sync.WaitGroup
}

func NewConsumers(subscriber domain.EventSubscriber, coordinator *Coordinator, log logger.Logger) *Consumers {
	return &Consumers{
		subscriber:  subscriber,
		coordinator: coordinator,
		log:         log,
	}
}

// Start launches the new-bid and acceptance subscriptions. It returns
// immediately; the subscriptions run until Stop or ctx cancellation.
func (c *Consumers) Start(ctx context.Context) {
	c.run(ctx, domain.TopicNewBid, c.handleNewBid)
	c.run(ctx, domain.TopicAcceptance, c.handleAcceptance)
}

// Stop cancels every subscription and waits for the consume loops to exit.
func (c *Consumers) Stop() {
	c.mu.Lock()
	stops := c.stops
	c.stops = nil
	c.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	c.done.Wait()
}

func (c *Consumers) run(ctx context.Context, topic string, handler domain.EventHandler) {
	subCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.stops = append(c.stops, cancel)
	c.mu.Unlock()

	c.done.Add(1)
	go func() {
		defer c.done.Done()
		if err := c.subscriber.Subscribe(subCtx, topic, handler); err != nil && subCtx.Err() == nil {
			c.log.Error("Subscription terminated", "topic", topic, "error", err)
		}
	}()
}

// handleNewBid applies one bid event. Business rejections are the normal
// outcome of losing bids and are logged at warn; only infrastructure errors
// propagate to the subscription.
func (c *Consumers) handleNewBid(payload []byte) error {
	var event domain.NewBidEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.log.Error("Undecodable new bid event", "error", err)
		return nil
	}

	err := c.coordinator.ApplyBid(context.Background(), &event)
	if err == nil {
		return nil
	}
	if domain.IsCode(err, domain.CodeBidRejected) {
		reason, _ := domain.ReasonOf(err)
		c.log.Warn("Bid rejected",
			"auction_id", event.AuctionID,
			"bidder_id", event.BidderID,
			"reason", reason)
		return nil
	}
	if domain.IsCode(err, domain.CodeAuctionNotFound) {
		c.log.Warn("Bid for unknown auction", "auction_id", event.AuctionID)
		return nil
	}
	c.log.Error("Failed to process bid", "auction_id", event.AuctionID, "error", err)
	return err
}

func (c *Consumers) handleAcceptance(payload []byte) error {
	var event domain.AcceptanceEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.log.Error("Undecodable acceptance event", "error", err)
		return nil
	}

	err := c.coordinator.ProcessAcceptance(context.Background(), &event)
	if err == nil {
		return nil
	}
	if domain.IsCode(err, domain.CodeAuctionNotFound) || domain.IsCode(err, domain.CodeAuctionNotAvailable) {
		c.log.Warn("Acceptance for unavailable auction", "auction_id", event.AuctionID)
		return nil
	}
	c.log.Error("Failed to process acceptance", "auction_id", event.AuctionID, "error", err)
	return err
}
