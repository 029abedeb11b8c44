package services

// In-memory repositories and ledger gateway backing the service tests. They
// enforce the same row-version and transition checks as the SQL repositories
// so guard and retry paths behave identically.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/transitions"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type memStore struct {
	mu sync.Mutex

	properties    map[uuid.UUID]*models.Property
	verifications map[uuid.UUID]*models.VerificationRequest
	listings      map[uuid.UUID]*models.Listing
	bids          map[uuid.UUID]*models.Bid
	escrows       map[uuid.UUID]*models.Escrow
	audits        []*models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		properties:    make(map[uuid.UUID]*models.Property),
		verifications: make(map[uuid.UUID]*models.VerificationRequest),
		listings:      make(map[uuid.UUID]*models.Listing),
		bids:          make(map[uuid.UUID]*models.Bid),
		escrows:       make(map[uuid.UUID]*models.Escrow),
	}
}

func cloneProperty(p *models.Property) *models.Property {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func cloneVerification(vr *models.VerificationRequest) *models.VerificationRequest {
	if vr == nil {
		return nil
	}
	c := *vr
	return &c
}

func cloneListing(l *models.Listing) *models.Listing {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func cloneBid(b *models.Bid) *models.Bid {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func cloneEscrow(e *models.Escrow) *models.Escrow {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

/* ------------------------------------------------------------------
   Property repository
------------------------------------------------------------------ */

type fakePropertyRepo struct {
	store *memStore
}

func (r *fakePropertyRepo) Create(ctx context.Context, p *models.Property) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.properties {
		if existing.LocationHash == p.LocationHash {
			return utils.ErrDuplicateProperty
		}
	}
	c := cloneProperty(p)
	c.RowVersion = 1
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.store.properties[c.ID] = c
	return nil
}

func (r *fakePropertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneProperty(r.store.properties[id]), nil
}

func (r *fakePropertyRepo) GetByOnChainID(ctx context.Context, onChainID string) (*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.properties {
		if p.OnChainID == onChainID {
			return cloneProperty(p), nil
		}
	}
	return nil, nil
}

func (r *fakePropertyRepo) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Property
	for _, p := range r.store.properties {
		if p.OwnerID == ownerID {
			out = append(out, cloneProperty(p))
		}
	}
	return out, nil
}

func (r *fakePropertyRepo) UpdateStatusAtomic(ctx context.Context, id uuid.UUID, newStatus models.PropertyStatusType, expectedVersion int64) (*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.updatePropertyLocked(id, newStatus, expectedVersion, true)
}

func (r *fakePropertyRepo) OverrideStatusAtomic(ctx context.Context, id uuid.UUID, newStatus models.PropertyStatusType, expectedVersion int64) (*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.updatePropertyLocked(id, newStatus, expectedVersion, false)
}

func (r *fakePropertyRepo) SetTokenizedAtomic(ctx context.Context, id uuid.UUID, onChainID string, totalShares int64, expectedVersion int64) (*models.Property, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := r.store.properties[id]
	if p == nil {
		return nil, utils.ErrNotFound
	}
	if p.RowVersion != expectedVersion {
		return cloneProperty(p), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckProperty(p.Status, models.PropertyStatusTokenized); err != nil {
		return cloneProperty(p), err
	}
	p.Status = models.PropertyStatusTokenized
	p.OnChainID = onChainID
	p.TotalShares = totalShares
	p.RowVersion++
	p.UpdatedAt = time.Now().UTC()
	return cloneProperty(p), nil
}

func (r *fakePropertyRepo) DeleteGuardedAtomic(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := r.store.properties[id]
	if p == nil {
		return utils.ErrNotFound
	}
	if !p.IsTerminal() && p.Status != models.PropertyStatusRegistered {
		return utils.ErrWrongStatus
	}
	for _, l := range r.store.listings {
		if l.PropertyID == id && l.Status == models.ListingStatusActive {
			return utils.ErrHasActiveChildren
		}
	}
	for _, vr := range r.store.verifications {
		if vr.PropertyID == id && !vr.IsTerminal() {
			return utils.ErrHasActiveChildren
		}
	}
	delete(r.store.properties, id)
	return nil
}

func (s *memStore) updatePropertyLocked(id uuid.UUID, newStatus models.PropertyStatusType, expectedVersion int64, guarded bool) (*models.Property, error) {
	p := s.properties[id]
	if p == nil {
		return nil, utils.ErrNotFound
	}
	if p.RowVersion != expectedVersion {
		return cloneProperty(p), utils.ErrRowVersionConflict
	}
	if guarded {
		if err := transitions.CheckProperty(p.Status, newStatus); err != nil {
			return cloneProperty(p), err
		}
	}
	p.Status = newStatus
	p.RowVersion++
	p.UpdatedAt = time.Now().UTC()
	return cloneProperty(p), nil
}

/* ------------------------------------------------------------------
   Verification request repository
------------------------------------------------------------------ */

type fakeVerificationRepo struct {
	store *memStore
}

func (r *fakeVerificationRepo) Create(ctx context.Context, vr *models.VerificationRequest) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c := cloneVerification(vr)
	c.RowVersion = 1
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.store.verifications[c.ID] = c
	return nil
}

func (r *fakeVerificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneVerification(r.store.verifications[id]), nil
}

func (r *fakeVerificationRepo) GetOpenByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, vr := range r.store.verifications {
		if vr.PropertyID == propertyID && !vr.IsTerminal() {
			return cloneVerification(vr), nil
		}
	}
	return nil, nil
}

func (r *fakeVerificationRepo) ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.VerificationRequest
	for _, vr := range r.store.verifications {
		if vr.PropertyID == propertyID {
			out = append(out, cloneVerification(vr))
		}
	}
	return out, nil
}

func (r *fakeVerificationRepo) ResolveAtomic(ctx context.Context, id uuid.UUID, approved bool, verifierID uuid.UUID, resultHash *string, expectedVersion int64) (*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	vr := r.store.verifications[id]
	if vr == nil {
		return nil, utils.ErrNotFound
	}
	if vr.RowVersion != expectedVersion {
		return cloneVerification(vr), utils.ErrRowVersionConflict
	}
	target := models.VerificationStatusRejected
	if approved {
		target = models.VerificationStatusApproved
	}
	if err := transitions.CheckVerification(vr.Status, target); err != nil {
		return cloneVerification(vr), err
	}
	if approved {
		p := r.store.properties[vr.PropertyID]
		if p == nil {
			return nil, utils.ErrNotFound
		}
		if err := transitions.CheckProperty(p.Status, models.PropertyStatusVerified); err != nil {
			return cloneVerification(vr), err
		}
		p.Status = models.PropertyStatusVerified
		p.RowVersion++
	}
	vr.Status = target
	vr.VerifierID = &verifierID
	vr.ResultHash = resultHash
	vr.RowVersion++
	vr.UpdatedAt = time.Now().UTC()
	return cloneVerification(vr), nil
}

func (r *fakeVerificationRepo) MarkInProgressAtomic(ctx context.Context, id uuid.UUID, verifierID uuid.UUID, expectedVersion int64) (*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	vr := r.store.verifications[id]
	if vr == nil {
		return nil, utils.ErrNotFound
	}
	if vr.RowVersion != expectedVersion {
		return cloneVerification(vr), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckVerification(vr.Status, models.VerificationStatusInProgress); err != nil {
		return cloneVerification(vr), err
	}
	vr.Status = models.VerificationStatusInProgress
	vr.VerifierID = &verifierID
	vr.RowVersion++
	vr.UpdatedAt = time.Now().UTC()
	return cloneVerification(vr), nil
}

func (r *fakeVerificationRepo) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.VerificationRequest
	for _, vr := range r.store.verifications {
		if !vr.IsTerminal() && !vr.CreatedAt.After(cutoff) {
			out = append(out, cloneVerification(vr))
		}
	}
	return out, nil
}

func (r *fakeVerificationRepo) ExpireAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.VerificationRequest, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	vr := r.store.verifications[id]
	if vr == nil {
		return nil, utils.ErrNotFound
	}
	if vr.RowVersion != expectedVersion {
		return cloneVerification(vr), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckVerification(vr.Status, models.VerificationStatusExpired); err != nil {
		return cloneVerification(vr), err
	}
	vr.Status = models.VerificationStatusExpired
	vr.RowVersion++
	vr.UpdatedAt = time.Now().UTC()
	return cloneVerification(vr), nil
}

/* ------------------------------------------------------------------
   Listing repository
------------------------------------------------------------------ */

type fakeListingRepo struct {
	store *memStore
}

func (r *fakeListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneListing(r.store.listings[id]), nil
}

func (r *fakeListingRepo) GetActiveByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, l := range r.store.listings {
		if l.PropertyID == propertyID && l.Status == models.ListingStatusActive {
			return cloneListing(l), nil
		}
	}
	return nil, nil
}

func (r *fakeListingRepo) ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Listing
	for _, l := range r.store.listings {
		if l.PropertyID == propertyID {
			out = append(out, cloneListing(l))
		}
	}
	return out, nil
}

func (r *fakeListingRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Listing
	for _, l := range r.store.listings {
		if l.Status == models.ListingStatusActive && l.IsExpired(now) {
			out = append(out, cloneListing(l))
		}
	}
	return out, nil
}

func (r *fakeListingRepo) CreateWithPropertyAtomic(ctx context.Context, l *models.Listing, expectedPropVersion int64) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p := r.store.properties[l.PropertyID]
	if p == nil {
		return nil, utils.ErrNotFound
	}
	if p.RowVersion != expectedPropVersion {
		return nil, utils.ErrRowVersionConflict
	}
	if err := transitions.CheckProperty(p.Status, models.PropertyStatusListed); err != nil {
		return nil, err
	}
	for _, existing := range r.store.listings {
		if existing.PropertyID == l.PropertyID && existing.Status == models.ListingStatusActive {
			return nil, utils.ErrListingConflict
		}
	}
	p.Status = models.PropertyStatusListed
	p.RowVersion++

	c := cloneListing(l)
	c.RowVersion = 1
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.store.listings[c.ID] = c
	return cloneListing(c), nil
}

func (r *fakeListingRepo) CancelAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Listing, error) {
	return r.closeListing(id, models.ListingStatusCancelled, expectedVersion)
}

func (r *fakeListingRepo) ExpireAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Listing, error) {
	return r.closeListing(id, models.ListingStatusExpired, expectedVersion)
}

// closeListing covers both cancel and expire: listing leaves ACTIVE, PENDING
// bids cascade to EXPIRED on expiry, and the property reverts to TOKENIZED.
func (r *fakeListingRepo) closeListing(id uuid.UUID, target models.ListingStatusType, expectedVersion int64) (*models.Listing, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l := r.store.listings[id]
	if l == nil {
		return nil, utils.ErrNotFound
	}
	if l.RowVersion != expectedVersion {
		return cloneListing(l), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckListing(l.Status, target); err != nil {
		return cloneListing(l), err
	}
	l.Status = target
	l.RowVersion++
	l.UpdatedAt = time.Now().UTC()

	if target == models.ListingStatusExpired {
		for _, b := range r.store.bids {
			if b.ListingID == id && b.Status == models.BidStatusPending {
				b.Status = models.BidStatusExpired
				b.RowVersion++
			}
		}
	}

	if p := r.store.properties[l.PropertyID]; p != nil && p.Status == models.PropertyStatusListed {
		p.Status = models.PropertyStatusTokenized
		p.RowVersion++
	}
	return cloneListing(l), nil
}

/* ------------------------------------------------------------------
   Bid repository
------------------------------------------------------------------ */

type fakeBidRepo struct {
	store *memStore
}

func (r *fakeBidRepo) CreateWithListingAtomic(ctx context.Context, b *models.Bid) (*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l := r.store.listings[b.ListingID]
	if l == nil {
		return nil, utils.ErrNotFound
	}
	if l.Status != models.ListingStatusActive {
		return nil, utils.ErrWrongStatus
	}
	if l.IsExpired(time.Now()) {
		return nil, utils.ErrListingExpired
	}
	c := cloneBid(b)
	c.RowVersion = 1
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.store.bids[c.ID] = c
	return cloneBid(c), nil
}

func (r *fakeBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneBid(r.store.bids[id]), nil
}

func (r *fakeBidRepo) ListByListingID(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Bid
	for _, b := range r.store.bids {
		if b.ListingID == listingID {
			out = append(out, cloneBid(b))
		}
	}
	return out, nil
}

func (r *fakeBidRepo) GetAcceptedByListingID(ctx context.Context, listingID uuid.UUID) (*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, b := range r.store.bids {
		if b.ListingID == listingID && b.Status == models.BidStatusAccepted {
			return cloneBid(b), nil
		}
	}
	return nil, nil
}

func (r *fakeBidRepo) AcceptAtomic(ctx context.Context, bidID uuid.UUID, expectedBidVersion, expectedListingVersion int64) (*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b := r.store.bids[bidID]
	if b == nil {
		return nil, utils.ErrNotFound
	}
	l := r.store.listings[b.ListingID]
	if l == nil {
		return nil, utils.ErrNotFound
	}
	if l.RowVersion != expectedListingVersion || b.RowVersion != expectedBidVersion {
		return cloneBid(b), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckListing(l.Status, models.ListingStatusSold); err != nil {
		return cloneBid(b), err
	}
	if err := transitions.CheckBid(b.Status, models.BidStatusAccepted); err != nil {
		return cloneBid(b), err
	}

	for _, sibling := range r.store.bids {
		if sibling.ListingID == l.ID && sibling.ID != bidID && sibling.Status == models.BidStatusPending {
			sibling.Status = models.BidStatusRejected
			sibling.RowVersion++
		}
	}
	b.Status = models.BidStatusAccepted
	b.RowVersion++
	b.UpdatedAt = time.Now().UTC()
	l.Status = models.ListingStatusSold
	l.RowVersion++
	return cloneBid(b), nil
}

func (r *fakeBidRepo) UpdateStatusAtomic(ctx context.Context, bidID uuid.UUID, newStatus models.BidStatusType, expectedVersion int64) (*models.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b := r.store.bids[bidID]
	if b == nil {
		return nil, utils.ErrNotFound
	}
	if b.RowVersion != expectedVersion {
		return cloneBid(b), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckBid(b.Status, newStatus); err != nil {
		return cloneBid(b), err
	}
	b.Status = newStatus
	b.RowVersion++
	b.UpdatedAt = time.Now().UTC()
	return cloneBid(b), nil
}

/* ------------------------------------------------------------------
   Escrow repository
------------------------------------------------------------------ */

type fakeEscrowRepo struct {
	store *memStore
}

func (r *fakeEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneEscrow(r.store.escrows[id]), nil
}

func (r *fakeEscrowRepo) GetNonTerminalByListingID(ctx context.Context, listingID uuid.UUID) (*models.Escrow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneEscrow(r.nonTerminalByListingLocked(listingID)), nil
}

func (r *fakeEscrowRepo) nonTerminalByListingLocked(listingID uuid.UUID) *models.Escrow {
	for _, e := range r.store.escrows {
		if e.ListingID == listingID && !e.IsTerminal() {
			return e
		}
	}
	return nil
}

func (r *fakeEscrowRepo) CreateDepositedIfAbsent(ctx context.Context, e *models.Escrow) (*models.Escrow, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if existing := r.nonTerminalByListingLocked(e.ListingID); existing != nil {
		return cloneEscrow(existing), false, nil
	}
	c := cloneEscrow(e)
	c.Status = models.EscrowStatusDeposited
	c.RowVersion = 1
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	r.store.escrows[c.ID] = c
	return cloneEscrow(c), true, nil
}

func (r *fakeEscrowRepo) ReleaseAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Escrow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := r.store.escrows[id]
	if e == nil {
		return nil, utils.ErrNotFound
	}
	if e.RowVersion != expectedVersion {
		return cloneEscrow(e), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckEscrow(e.Status, models.EscrowStatusReleased); err != nil {
		return cloneEscrow(e), err
	}
	r.settleToBuyerLocked(e)
	return cloneEscrow(e), nil
}

// settleToBuyerLocked finalizes the sale: escrow RELEASED, property owned by
// the buyer and SOLD.
func (r *fakeEscrowRepo) settleToBuyerLocked(e *models.Escrow) {
	now := time.Now().UTC()
	e.Status = models.EscrowStatusReleased
	e.ReleasedAt = &now
	e.RowVersion++
	e.UpdatedAt = now
	if l := r.store.listings[e.ListingID]; l != nil {
		if p := r.store.properties[l.PropertyID]; p != nil && p.Status == models.PropertyStatusListed {
			p.OwnerID = e.BuyerID
			p.Status = models.PropertyStatusSold
			p.RowVersion++
		}
	}
}

func (r *fakeEscrowRepo) FileDisputeAtomic(ctx context.Context, id uuid.UUID, reason string, expectedVersion int64) (*models.Escrow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := r.store.escrows[id]
	if e == nil {
		return nil, utils.ErrNotFound
	}
	if e.RowVersion != expectedVersion {
		return cloneEscrow(e), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckEscrow(e.Status, models.EscrowStatusDisputed); err != nil {
		return cloneEscrow(e), err
	}
	e.Status = models.EscrowStatusDisputed
	e.DisputeReason = &reason
	e.RowVersion++
	e.UpdatedAt = time.Now().UTC()
	return cloneEscrow(e), nil
}

func (r *fakeEscrowRepo) ResolveAtomic(ctx context.Context, id uuid.UUID, releaseToSeller bool, audit *models.AuditLog, expectedVersion int64) (*models.Escrow, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := r.store.escrows[id]
	if e == nil {
		return nil, utils.ErrNotFound
	}
	if e.RowVersion != expectedVersion {
		return cloneEscrow(e), utils.ErrRowVersionConflict
	}
	if err := transitions.CheckEscrow(e.Status, models.EscrowStatusResolved); err != nil {
		return cloneEscrow(e), err
	}
	now := time.Now().UTC()
	e.Status = models.EscrowStatusResolved
	e.RowVersion++
	e.UpdatedAt = now
	if l := r.store.listings[e.ListingID]; l != nil {
		if p := r.store.properties[l.PropertyID]; p != nil {
			if releaseToSeller {
				if p.Status == models.PropertyStatusListed {
					p.OwnerID = e.BuyerID
					p.Status = models.PropertyStatusSold
					p.RowVersion++
				}
			} else if p.Status == models.PropertyStatusListed {
				p.Status = models.PropertyStatusTokenized
				p.RowVersion++
			}
		}
	}
	r.store.audits = append(r.store.audits, audit)
	return cloneEscrow(e), nil
}

/* ------------------------------------------------------------------
   Audit log repository
------------------------------------------------------------------ */

type fakeAuditRepo struct {
	store *memStore
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audits = append(r.store.audits, entry)
	return nil
}

func (r *fakeAuditRepo) ListByTargetID(ctx context.Context, targetID uuid.UUID) ([]models.AuditLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.AuditLog
	for _, a := range r.store.audits {
		if a.TargetID == targetID {
			out = append(out, *a)
		}
	}
	return out, nil
}

/* ------------------------------------------------------------------
   Ledger gateway
------------------------------------------------------------------ */

// fakeGateway records every settlement call keyed by idempotency key and can
// be primed to fail the next N calls, simulating gateway timeouts.
type fakeGateway struct {
	mu            sync.Mutex
	failNext      int
	failWith      error
	tokenizeCalls map[string]int
	lockCalls     map[string]int
	finalizeCalls map[string]int
	releaseCalls  map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		tokenizeCalls: make(map[string]int),
		lockCalls:     make(map[string]int),
		finalizeCalls: make(map[string]int),
		releaseCalls:  make(map[string]int),
	}
}

func (g *fakeGateway) failNextCalls(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = n
	g.failWith = err
}

func (g *fakeGateway) maybeFailLocked() error {
	if g.failNext > 0 {
		g.failNext--
		if g.failWith != nil {
			return g.failWith
		}
		return fmt.Errorf("%w: simulated timeout", utils.ErrLedgerUnavailable)
	}
	return nil
}

func (g *fakeGateway) TokenizeProperty(ctx context.Context, propertyID uuid.UUID, totalShares int64, idemKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFailLocked(); err != nil {
		return "", err
	}
	g.tokenizeCalls[idemKey]++
	return "chain-" + propertyID.String(), nil
}

func (g *fakeGateway) LockFunds(ctx context.Context, escrowID, buyerID uuid.UUID, amount float64, idemKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFailLocked(); err != nil {
		return err
	}
	g.lockCalls[idemKey]++
	return nil
}

func (g *fakeGateway) FinalizeTransfer(ctx context.Context, escrowID uuid.UUID, idemKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFailLocked(); err != nil {
		return err
	}
	g.finalizeCalls[idemKey]++
	return nil
}

func (g *fakeGateway) ReleaseLock(ctx context.Context, escrowID uuid.UUID, idemKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.maybeFailLocked(); err != nil {
		return err
	}
	g.releaseCalls[idemKey]++
	return nil
}

/* ------------------------------------------------------------------
   Fixture
------------------------------------------------------------------ */

type fixture struct {
	store   *memStore
	cfg     *config.Config
	gateway *fakeGateway

	propRepo    *fakePropertyRepo
	vrRepo      *fakeVerificationRepo
	listingRepo *fakeListingRepo
	bidRepo     *fakeBidRepo
	escrowRepo  *fakeEscrowRepo
	auditRepo   *fakeAuditRepo

	properties  *PropertyService
	marketplace *MarketplaceService
	escrow      *EscrowService
	sweeper     *SweeperService
}

var testAdminID = uuid.MustParse("0f0f0f0f-0f0f-4f0f-8f0f-0f0f0f0f0f0f")

func newFixture() *fixture {
	store := newMemStore()
	cfg := &config.Config{
		AdminUserIDs:       []uuid.UUID{testAdminID},
		VerificationMaxAge: 72 * time.Hour,
	}
	f := &fixture{
		store:       store,
		cfg:         cfg,
		gateway:     newFakeGateway(),
		propRepo:    &fakePropertyRepo{store: store},
		vrRepo:      &fakeVerificationRepo{store: store},
		listingRepo: &fakeListingRepo{store: store},
		bidRepo:     &fakeBidRepo{store: store},
		escrowRepo:  &fakeEscrowRepo{store: store},
		auditRepo:   &fakeAuditRepo{store: store},
	}
	f.properties = NewPropertyService(cfg, f.propRepo, f.vrRepo, f.auditRepo, f.gateway)
	f.marketplace = NewMarketplaceService(cfg, f.propRepo, f.listingRepo, f.bidRepo, nil)
	f.escrow = NewEscrowService(cfg, f.escrowRepo, f.listingRepo, f.bidRepo, f.gateway, nil)
	f.sweeper = NewSweeperService(cfg, f.listingRepo, f.vrRepo)
	return f
}

// tokenizedProperty shortcuts the register -> verify -> tokenize pipeline.
func (f *fixture) tokenizedProperty(t *testing.T, ownerID uuid.UUID) *models.Property {
	t.Helper()
	ctx := context.Background()
	p, err := f.properties.RegisterProperty(ctx, ownerID, 500_000, "loc-"+uuid.NewString(), "doc-"+uuid.NewString())
	if err != nil {
		t.Fatalf("register property: %v", err)
	}
	vr, err := f.properties.RequestVerification(ctx, p.ID, ownerID, p.DocumentHash)
	if err != nil {
		t.Fatalf("request verification: %v", err)
	}
	if _, err := f.properties.ResolveVerification(ctx, vr.ID, testAdminID, true, nil); err != nil {
		t.Fatalf("resolve verification: %v", err)
	}
	tokenized, err := f.properties.TokenizeProperty(ctx, p.ID, ownerID, 1000)
	if err != nil {
		t.Fatalf("tokenize property: %v", err)
	}
	return tokenized
}

// soldListing drives a listing through bid acceptance so escrow tests start
// from a SOLD listing with an accepted bid.
func (f *fixture) soldListing(t *testing.T, sellerID, buyerID uuid.UUID, amount float64) (*models.Listing, *models.Bid) {
	t.Helper()
	ctx := context.Background()
	p := f.tokenizedProperty(t, sellerID)
	l, err := f.marketplace.CreateListing(ctx, p.ID, sellerID, amount, listingTTL)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	b, err := f.marketplace.PlaceBid(ctx, l.ID, buyerID, amount, nil)
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	accepted, err := f.marketplace.AcceptBid(ctx, b.ID, sellerID)
	if err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	return l, accepted
}

const listingTTL = 24 * time.Hour

var errBoom = errors.New("boom")
