package services

import (
	"context"
	"sync"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"

	"github.com/shopspring/decimal"
)

// fakeRepo is an in-memory AuctionRepository with the same conditional
// update semantics as the MySQL one.
type fakeRepo struct {
	mu       sync.Mutex
	auctions map[int64]*domain.Auction
	nextID   int64

	getErr    error
	updateErr error
	// forceConflicts makes the next N updates lose the version race.
	forceConflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{auctions: make(map[int64]*domain.Auction), nextID: 1}
}

func (r *fakeRepo) put(a *domain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.auctions[a.ID] = &copied
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
}

func (r *fakeRepo) stored(id int64) *domain.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil
	}
	copied := *a
	return &copied
}

func (r *fakeRepo) Create(_ context.Context, auction *domain.Auction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	copied := *auction
	copied.ID = id
	copied.Version = 1
	r.auctions[id] = &copied
	return id, nil
}

func (r *fakeRepo) Get(_ context.Context, auctionID int64) (*domain.Auction, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return nil, domain.ErrAuctionNotFound()
	}
	copied := *a
	return &copied, nil
}

func (r *fakeRepo) GetByItem(_ context.Context, itemID int64) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.auctions {
		if a.ItemID == itemID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) Update(_ context.Context, auction *domain.Auction) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceConflicts > 0 {
		r.forceConflicts--
		return domain.ErrVersionConflict
	}
	current, ok := r.auctions[auction.ID]
	if !ok || current.Version != auction.Version {
		return domain.ErrVersionConflict
	}
	copied := *auction
	copied.Version++
	r.auctions[auction.ID] = &copied
	auction.Version = copied.Version
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, auctionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.auctions, auctionID)
	return nil
}

func (r *fakeRepo) ListBySeller(_ context.Context, sellerID int64) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, a := range r.auctions {
		if a.SellerID == sellerID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListActivePublic(_ context.Context) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, a := range r.auctions {
		if a.PublicAccess && !a.Finished {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListActive(_ context.Context) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, a := range r.auctions {
		if !a.Finished {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListEndingBetween(_ context.Context, from, to time.Time) ([]*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Auction
	for _, a := range r.auctions {
		if !a.EndDate.Before(from) && !a.EndDate.After(to) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeSnapshots struct {
	mu        sync.Mutex
	snapshots map[int64]*domain.Snapshot

	removeErr error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snapshots: make(map[int64]*domain.Snapshot)}
}

func (s *fakeSnapshots) Get(_ context.Context, auctionID int64) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[auctionID]
	if !ok {
		return nil, nil
	}
	copied := *snap
	return &copied, nil
}

func (s *fakeSnapshots) Put(_ context.Context, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snapshot
	s.snapshots[snapshot.AuctionID] = &copied
	return nil
}

func (s *fakeSnapshots) PutIfPresent(_ context.Context, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshot.AuctionID]; !ok {
		return nil
	}
	copied := *snapshot
	s.snapshots[snapshot.AuctionID] = &copied
	return nil
}

func (s *fakeSnapshots) PutAll(_ context.Context, snapshots []*domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snapshots {
		copied := *snap
		s.snapshots[snap.AuctionID] = &copied
	}
	return nil
}

func (s *fakeSnapshots) Remove(_ context.Context, auctionID int64) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, auctionID)
	return nil
}

func (s *fakeSnapshots) List(_ context.Context) ([]*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		copied := *snap
		out = append(out, &copied)
	}
	return out, nil
}

type memberKey struct {
	auctionID int64
	userID    int64
}

type fakeParticipants struct {
	mu      sync.Mutex
	members map[memberKey]bool
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{members: make(map[memberKey]bool)}
}

func (p *fakeParticipants) Add(_ context.Context, auctionID, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := memberKey{auctionID, userID}
	if p.members[key] {
		return false, nil
	}
	p.members[key] = true
	return true, nil
}

func (p *fakeParticipants) Remove(_ context.Context, auctionID, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := memberKey{auctionID, userID}
	if !p.members[key] {
		return false, nil
	}
	delete(p.members, key)
	return true, nil
}

func (p *fakeParticipants) Contains(_ context.Context, auctionID, userID int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[memberKey{auctionID, userID}], nil
}

func (p *fakeParticipants) Clear(_ context.Context, auctionID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.members {
		if key.auctionID == auctionID {
			delete(p.members, key)
		}
	}
	return nil
}

type publishedEvent struct {
	topic   string
	payload interface{}
}

// fakePublisher records every publish; failTopics simulates a broken bus for
// selected topics.
type fakePublisher struct {
	mu         sync.Mutex
	events     []publishedEvent
	failTopics map[string]error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failTopics[topic]; ok {
		return err
	}
	p.events = append(p.events, publishedEvent{topic: topic, payload: payload})
	return nil
}

func (p *fakePublisher) onTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fakeItemClient struct {
	owners map[int64]int64
	err    error
}

func (c *fakeItemClient) SellerOf(_ context.Context, itemID int64) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	owner, ok := c.owners[itemID]
	if !ok {
		return 0, domain.ErrItemNotFound()
	}
	return owner, nil
}

type fakeUserClient struct {
	users map[string]int64
	err   error
}

func (c *fakeUserClient) FindByEmail(_ context.Context, email string) (int64, bool, error) {
	if c.err != nil {
		return 0, false, c.err
	}
	id, ok := c.users[email]
	return id, ok, nil
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
