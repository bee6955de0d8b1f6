package services

import (
	"context"
	"testing"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/peterldowns/testy/check"
)

type coordinatorFixture struct {
	coordinator  *Coordinator
	cacheManager *CacheManager
	repo         *fakeRepo
	snapshots    *fakeSnapshots
	participants *fakeParticipants
	publisher    *fakePublisher
	items        *fakeItemClient
	users        *fakeUserClient
	now          time.Time
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	log := logger.Nop()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	repo := newFakeRepo()
	snapshots := newFakeSnapshots()
	participants := newFakeParticipants()
	publisher := newFakePublisher()
	items := &fakeItemClient{owners: map[int64]int64{10: 100}}
	users := &fakeUserClient{users: map[string]int64{"ann@example.com": 200}}

	access := NewAccessControl(participants, log)
	cacheManager := NewCacheManager(repo, snapshots, publisher, nil, time.Hour, log)
	cacheManager.now = func() time.Time { return now }

	coordinator := NewCoordinator(repo, snapshots, access, publisher, items, users, cacheManager, nil, log)
	coordinator.now = func() time.Time { return now }

	return &coordinatorFixture{
		coordinator:  coordinator,
		cacheManager: cacheManager,
		repo:         repo,
		snapshots:    snapshots,
		participants: participants,
		publisher:    publisher,
		items:        items,
		users:        users,
		now:          now,
	}
}

func (f *coordinatorFixture) openAuction(id int64, public bool) *domain.Auction {
	a := &domain.Auction{
		ID:            id,
		ItemID:        id * 10,
		SellerID:      100,
		StartingPrice: money(100),
		CurrentPrice:  money(100),
		StartDate:     f.now.Add(-time.Hour),
		EndDate:       f.now.Add(time.Hour),
		PublicAccess:  public,
		Version:       1,
	}
	f.repo.put(a)
	return a
}

func (f *coordinatorFixture) scheduledAuction(id int64) *domain.Auction {
	a := &domain.Auction{
		ID:            id,
		ItemID:        id * 10,
		SellerID:      100,
		StartingPrice: money(100),
		CurrentPrice:  money(100),
		StartDate:     f.now.Add(time.Hour),
		EndDate:       f.now.Add(2 * time.Hour),
		PublicAccess:  true,
		Version:       1,
	}
	f.repo.put(a)
	return a
}

func TestCreate_PersistsAndAnnounces(t *testing.T) {
	f := newCoordinatorFixture(t)

	auction, err := f.coordinator.Create(context.Background(), CreateAuctionRequest{
		ItemID:        10,
		StartingPrice: money(50),
		StartDate:     f.now.Add(time.Hour),
		EndDate:       f.now.Add(2 * time.Hour),
		PublicAccess:  true,
	}, 100)
	check.Nil(t, err)
	check.True(t, auction.ID > 0)
	check.True(t, auction.CurrentPrice.Equal(money(50)))
	check.Nil(t, auction.BidderID)

	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicAuctionCreated)))
	check.True(t, f.repo.stored(auction.ID) != nil)
}

func TestCreate_RejectsDuplicateItem(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true) // item 10

	_, err := f.coordinator.Create(context.Background(), CreateAuctionRequest{
		ItemID:        10,
		StartingPrice: money(50),
		StartDate:     f.now.Add(time.Hour),
		EndDate:       f.now.Add(2 * time.Hour),
	}, 100)
	check.True(t, domain.IsCode(err, domain.CodeAuctionAlreadyExists))
}

func TestCreate_RejectsNonOwner(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.Create(context.Background(), CreateAuctionRequest{
		ItemID:        10,
		StartingPrice: money(50),
		StartDate:     f.now.Add(time.Hour),
		EndDate:       f.now.Add(2 * time.Hour),
	}, 999)
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotAvailable))
}

func TestCreate_RejectsBadWindow(t *testing.T) {
	f := newCoordinatorFixture(t)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"start in the past", f.now.Add(-time.Minute), f.now.Add(time.Hour)},
		{"end before start", f.now.Add(2 * time.Hour), f.now.Add(time.Hour)},
		{"zero length", f.now.Add(time.Hour), f.now.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coordinator.Create(context.Background(), CreateAuctionRequest{
				ItemID:        10,
				StartingPrice: money(50),
				StartDate:     tt.start,
				EndDate:       tt.end,
			}, 100)
			check.True(t, domain.IsCode(err, domain.CodeInvalidAuctionWindow))
		})
	}
}

func TestGet_CacheHitSkipsStore(t *testing.T) {
	f := newCoordinatorFixture(t)
	a := f.openAuction(1, true)
	check.Nil(t, f.snapshots.Put(context.Background(), domain.SnapshotOf(a)))

	// Store misbehaves; the cached snapshot must satisfy the read.
	f.repo.getErr = domain.ErrStoreFailed("store down", nil)

	got, err := f.coordinator.Get(context.Background(), 1, 300)
	check.Nil(t, err)
	check.Equal(t, a.ID, got.ID)
}

func TestGet_CacheMissFallsThrough(t *testing.T) {
	f := newCoordinatorFixture(t)
	a := f.openAuction(1, true)

	got, err := f.coordinator.Get(context.Background(), 1, 300)
	check.Nil(t, err)
	check.Equal(t, a.ID, got.ID)
}

func TestGet_PrivateVisibility(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)

	// The seller always sees their own auction.
	_, err := f.coordinator.Get(context.Background(), 1, 100)
	check.Nil(t, err)

	// A stranger does not.
	_, err = f.coordinator.Get(context.Background(), 1, 300)
	check.True(t, domain.IsCode(err, domain.CodeNotAParticipant))

	// Granted membership opens the door.
	_, err = f.participants.Add(context.Background(), 1, 300)
	check.Nil(t, err)
	got, err := f.coordinator.Get(context.Background(), 1, 300)
	check.Nil(t, err)
	check.Equal(t, int64(1), got.ID)
}

func TestGet_UnknownAuction(t *testing.T) {
	f := newCoordinatorFixture(t)

	_, err := f.coordinator.Get(context.Background(), 42, 100)
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotFound))
}

func TestApplyBid_AcceptsAndWritesThrough(t *testing.T) {
	f := newCoordinatorFixture(t)
	a := f.openAuction(1, true)
	check.Nil(t, f.snapshots.Put(context.Background(), domain.SnapshotOf(a)))

	err := f.coordinator.ApplyBid(context.Background(), &domain.NewBidEvent{
		BidID: 7, AuctionID: 1, BidderID: 300, BidAmount: money(150),
	})
	check.Nil(t, err)

	stored := f.repo.stored(1)
	check.True(t, stored.CurrentPrice.Equal(money(150)))
	check.Equal(t, int64(300), *stored.BidderID)
	check.Equal(t, int64(2), stored.Version)

	snap, _ := f.snapshots.Get(context.Background(), 1)
	check.True(t, snap.CurrentPrice.Equal(money(150)))

	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicNewBidNotification)))
}

func TestApplyBid_DoesNotPrimeCache(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	err := f.coordinator.ApplyBid(context.Background(), &domain.NewBidEvent{
		AuctionID: 1, BidderID: 300, BidAmount: money(150),
	})
	check.Nil(t, err)

	// No snapshot existed, so the write-through must not create one.
	snap, _ := f.snapshots.Get(context.Background(), 1)
	check.Nil(t, snap)
}

func TestApplyBid_RejectionsAreTerminal(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	tests := []struct {
		name   string
		event  *domain.NewBidEvent
		reason domain.RejectReason
	}{
		{"seller self bid", &domain.NewBidEvent{AuctionID: 1, BidderID: 100, BidAmount: money(150)}, domain.RejectSellerOwnAuction},
		{"equal amount", &domain.NewBidEvent{AuctionID: 1, BidderID: 300, BidAmount: money(100)}, domain.RejectBidTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.coordinator.ApplyBid(context.Background(), tt.event)
			reason, ok := domain.ReasonOf(err)
			check.True(t, ok)
			check.Equal(t, tt.reason, reason)
		})
	}

	// Nothing changed and nothing was announced.
	stored := f.repo.stored(1)
	check.True(t, stored.CurrentPrice.Equal(money(100)))
	check.Equal(t, 0, len(f.publisher.onTopic(domain.TopicNewBidNotification)))
}

func TestApplyBid_RetriesOnVersionConflict(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)
	f.repo.forceConflicts = 2

	err := f.coordinator.ApplyBid(context.Background(), &domain.NewBidEvent{
		AuctionID: 1, BidderID: 300, BidAmount: money(150),
	})
	check.Nil(t, err)
	check.True(t, f.repo.stored(1).CurrentPrice.Equal(money(150)))
}

func TestApplyBid_ExhaustedRetriesSurface(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)
	f.repo.forceConflicts = bidWriteAttempts

	err := f.coordinator.ApplyBid(context.Background(), &domain.NewBidEvent{
		AuctionID: 1, BidderID: 300, BidAmount: money(150),
	})
	check.True(t, domain.IsCode(err, domain.CodeStoreFailed))
}

func TestUpdate_PatchesBeforeStart(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.scheduledAuction(1)

	price := money(80)
	public := false
	got, err := f.coordinator.Update(context.Background(), 1, 100, UpdateAuctionPatch{
		StartingPrice: &price,
		PublicAccess:  &public,
	})
	check.Nil(t, err)
	check.True(t, got.StartingPrice.Equal(money(80)))
	check.True(t, got.CurrentPrice.Equal(money(80)))
	check.Equal(t, false, got.PublicAccess)
}

func TestUpdate_RejectsAfterStart(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	price := money(80)
	_, err := f.coordinator.Update(context.Background(), 1, 100, UpdateAuctionPatch{StartingPrice: &price})
	check.True(t, domain.IsCode(err, domain.CodeAuctionAlreadyStarted))
}

func TestUpdate_StartDateOnlyMovesEarlier(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.scheduledAuction(1) // starts at now+1h

	later := f.now.Add(90 * time.Minute)
	_, err := f.coordinator.Update(context.Background(), 1, 100, UpdateAuctionPatch{StartDate: &later})
	check.True(t, domain.IsCode(err, domain.CodeInvalidAuctionWindow))

	earlier := f.now.Add(30 * time.Minute)
	got, err := f.coordinator.Update(context.Background(), 1, 100, UpdateAuctionPatch{StartDate: &earlier})
	check.Nil(t, err)
	check.True(t, got.StartDate.Equal(earlier))
}

func TestUpdate_SellerOnly(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.scheduledAuction(1)

	price := money(80)
	_, err := f.coordinator.Update(context.Background(), 1, 999, UpdateAuctionPatch{StartingPrice: &price})
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotAvailable))
}

func TestClose_FinalizesForSeller(t *testing.T) {
	f := newCoordinatorFixture(t)
	a := f.openAuction(1, true)
	check.Nil(t, f.snapshots.Put(context.Background(), domain.SnapshotOf(a)))

	got, err := f.coordinator.Close(context.Background(), 1, 100)
	check.Nil(t, err)
	check.True(t, got.Finished)
	check.True(t, f.repo.stored(1).Finished)

	snap, _ := f.snapshots.Get(context.Background(), 1)
	check.Nil(t, snap)
	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicAuctionFinishedNotification)))
}

func TestClose_RejectsNonSellerAndFinished(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	_, err := f.coordinator.Close(context.Background(), 1, 999)
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotAvailable))

	_, err = f.coordinator.Close(context.Background(), 1, 100)
	check.Nil(t, err)

	// Closing twice fails the availability gate.
	_, err = f.coordinator.Close(context.Background(), 1, 100)
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotAvailable))
}

func TestDelete_RemovesEverything(t *testing.T) {
	f := newCoordinatorFixture(t)
	a := f.openAuction(1, false)
	check.Nil(t, f.snapshots.Put(context.Background(), domain.SnapshotOf(a)))
	_, err := f.participants.Add(context.Background(), 1, 300)
	check.Nil(t, err)

	check.Nil(t, f.coordinator.Delete(context.Background(), 1, 100))

	check.Nil(t, f.repo.stored(1))
	snap, _ := f.snapshots.Get(context.Background(), 1)
	check.Nil(t, snap)
	member, _ := f.participants.Contains(context.Background(), 1, 300)
	check.Equal(t, false, member)
	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicAuctionRemoved)))
	// The open auction was closed on the way out.
	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicAuctionFinishedNotification)))
}

func TestDelete_SellerOnly(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	err := f.coordinator.Delete(context.Background(), 1, 999)
	check.True(t, domain.IsCode(err, domain.CodeAuctionNotAvailable))
	check.True(t, f.repo.stored(1) != nil)
}

func TestActiveForUser_FiltersVisibility(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)  // public, visible
	f.openAuction(2, false) // private, membership required
	mine := f.openAuction(3, true)
	mine.SellerID = 300
	f.repo.put(mine)

	auctions, err := f.coordinator.ActiveForUser(context.Background(), 300)
	check.Nil(t, err)
	check.Equal(t, 1, len(auctions))
	check.Equal(t, int64(1), auctions[0].ID)

	_, err = f.participants.Add(context.Background(), 2, 300)
	check.Nil(t, err)

	auctions, err = f.coordinator.ActiveForUser(context.Background(), 300)
	check.Nil(t, err)
	check.Equal(t, 2, len(auctions))

	private, err := f.coordinator.ActivePrivateForUser(context.Background(), 300)
	check.Nil(t, err)
	check.Equal(t, 1, len(private))
	check.Equal(t, int64(2), private[0].ID)
}

func TestSendInvitations_SkipsUnknownEmails(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)

	err := f.coordinator.SendInvitations(context.Background(), 1, 100,
		[]string{"ann@example.com", "ghost@example.com"})
	check.Nil(t, err)

	invitations := f.publisher.onTopic(domain.TopicAuctionInvitation)
	check.Equal(t, 1, len(invitations))
	event := invitations[0].payload.(domain.InvitationEvent)
	check.Equal(t, int64(200), event.UserID)
	check.Equal(t, int64(100), event.SellerID)
}

func TestSendInvitations_TransportErrorAborts(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)
	f.users.err = domain.ErrCollaboratorUnavailable(nil)

	err := f.coordinator.SendInvitations(context.Background(), 1, 100, []string{"ann@example.com"})
	check.True(t, domain.IsCode(err, domain.CodeCollaboratorUnavailable))
}

func TestProcessAcceptance_GrantsOnAccept(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)

	err := f.coordinator.ProcessAcceptance(context.Background(), &domain.AcceptanceEvent{
		AuctionID: 1, UserID: 300, Acceptance: true,
	})
	check.Nil(t, err)

	member, _ := f.participants.Contains(context.Background(), 1, 300)
	check.True(t, member)
}

func TestProcessAcceptance_DeclineIsNoop(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)

	err := f.coordinator.ProcessAcceptance(context.Background(), &domain.AcceptanceEvent{
		AuctionID: 1, UserID: 300, Acceptance: false,
	})
	check.Nil(t, err)

	member, _ := f.participants.Contains(context.Background(), 1, 300)
	check.Equal(t, false, member)
}

func TestRemoveParticipant_RevokesAndNotifies(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)
	_, err := f.participants.Add(context.Background(), 1, 300)
	check.Nil(t, err)

	check.Nil(t, f.coordinator.RemoveParticipant(context.Background(), 1, 100, 300))

	member, _ := f.participants.Contains(context.Background(), 1, 300)
	check.Equal(t, false, member)
	check.Equal(t, 1, len(f.publisher.onTopic(domain.TopicUserRemovedNotification)))
}

func TestRemoveParticipant_NonMemberSurfaces(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, false)

	err := f.coordinator.RemoveParticipant(context.Background(), 1, 100, 300)
	check.True(t, domain.IsCode(err, domain.CodeCacheFailed))
}

func TestSellerID_Lookup(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.openAuction(1, true)

	sellerID, err := f.coordinator.SellerID(context.Background(), 1)
	check.Nil(t, err)
	check.Equal(t, int64(100), sellerID)
}
