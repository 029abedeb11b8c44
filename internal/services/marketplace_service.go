package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/repositories"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type MarketplaceService struct {
	cfg         *config.Config
	propRepo    repositories.PropertyRepository
	listingRepo repositories.ListingRepository
	bidRepo     repositories.BidRepository
	notifier    *NotificationService
}

func NewMarketplaceService(
	cfg *config.Config,
	propRepo repositories.PropertyRepository,
	listingRepo repositories.ListingRepository,
	bidRepo repositories.BidRepository,
	notifier *NotificationService,
) *MarketplaceService {
	return &MarketplaceService{
		cfg:         cfg,
		propRepo:    propRepo,
		listingRepo: listingRepo,
		bidRepo:     bidRepo,
		notifier:    notifier,
	}
}

// CreateListing puts a TOKENIZED property on the market. The property moves
// to LISTED and the listing starts ACTIVE; at most one ACTIVE listing may
// exist per property, enforced under the property row lock. Expiry is
// computed server-side from the given duration so callers cannot submit
// timestamps in the past.
func (s *MarketplaceService) CreateListing(
	ctx context.Context,
	propertyID uuid.UUID,
	sellerID uuid.UUID,
	price float64,
	duration time.Duration,
) (*models.Listing, error) {
	if price <= 0 {
		return nil, fmt.Errorf("listing price must be positive, got %f", price)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("listing duration must be positive, got %s", duration)
	}
	expiresAt := time.Now().Add(duration)

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		prop, err := s.propRepo.GetByID(ctx, propertyID)
		if err != nil {
			return nil, err
		}
		if prop == nil {
			return nil, nil
		}
		if prop.OwnerID != sellerID {
			return nil, utils.ErrUnauthorized
		}
		if prop.Status != models.PropertyStatusTokenized {
			return nil, utils.ErrWrongStatus
		}

		l := &models.Listing{
			ID:         uuid.New(),
			PropertyID: propertyID,
			SellerID:   sellerID,
			Price:      price,
			Status:     models.ListingStatusActive,
			ExpiresAt:  expiresAt,
		}
		created, err := s.listingRepo.CreateWithPropertyAtomic(ctx, l, prop.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return created, err
	}
	latest, _ := s.propRepo.GetByID(ctx, propertyID)
	return nil, utils.NewRowVersionConflictError(latest)
}

func (s *MarketplaceService) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.listingRepo.GetByID(ctx, id)
}

func (s *MarketplaceService) ListBids(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	return s.bidRepo.ListByListingID(ctx, listingID)
}

// CancelListing takes an ACTIVE listing off the market and reverts the
// property to TOKENIZED so it can be relisted. Only the seller may cancel.
func (s *MarketplaceService) CancelListing(
	ctx context.Context,
	listingID uuid.UUID,
	callerID uuid.UUID,
) (*models.Listing, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		l, err := s.listingRepo.GetByID(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, nil
		}
		if l.SellerID != callerID {
			return nil, utils.ErrUnauthorized
		}
		if l.Status != models.ListingStatusActive {
			return nil, utils.ErrWrongStatus
		}
		cancelled, err := s.listingRepo.CancelAtomic(ctx, listingID, l.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return cancelled, err
	}
	latest, _ := s.listingRepo.GetByID(ctx, listingID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// PlaceBid records a PENDING bid on an ACTIVE, unexpired listing. Sellers
// cannot bid on their own listings. An expired-but-unswept listing rejects
// bids the same way a swept one does. The insert re-checks the listing under
// its row lock, so a bid racing an accept or an expiry sweep fails instead of
// committing against a closed listing.
func (s *MarketplaceService) PlaceBid(
	ctx context.Context,
	listingID uuid.UUID,
	bidderID uuid.UUID,
	amount float64,
	message *string,
) (*models.Bid, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("bid amount must be positive, got %f", amount)
	}

	l, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if l.SellerID == bidderID {
		return nil, utils.ErrSelfBidNotAllowed
	}
	if l.Status != models.ListingStatusActive {
		return nil, utils.ErrWrongStatus
	}
	if l.IsExpired(time.Now()) {
		return nil, utils.ErrListingExpired
	}

	b := &models.Bid{
		ID:        uuid.New(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		Message:   message,
		Status:    models.BidStatusPending,
	}
	created, err := s.bidRepo.CreateWithListingAtomic(ctx, b)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyNewBid(ctx, l, created)
	}
	return created, nil
}

// AcceptBid closes the auction: the bid goes ACCEPTED, every sibling PENDING
// bid is REJECTED and the listing goes SOLD, all in one transaction. Two
// concurrent accepts serialize on the listing lock; exactly one wins.
func (s *MarketplaceService) AcceptBid(
	ctx context.Context,
	bidID uuid.UUID,
	callerID uuid.UUID,
) (*models.Bid, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		b, err := s.bidRepo.GetByID(ctx, bidID)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		l, err := s.listingRepo.GetByID(ctx, b.ListingID)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, utils.ErrNotFound
		}
		if l.SellerID != callerID {
			return nil, utils.ErrUnauthorized
		}
		if l.Status != models.ListingStatusActive {
			return nil, utils.ErrListingConflict
		}
		if b.Status != models.BidStatusPending {
			return nil, utils.ErrWrongStatus
		}

		accepted, err := s.bidRepo.AcceptAtomic(ctx, bidID, b.RowVersion, l.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return accepted, err
	}
	latest, _ := s.bidRepo.GetByID(ctx, bidID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// RejectBid declines a single PENDING bid without touching the listing.
func (s *MarketplaceService) RejectBid(
	ctx context.Context,
	bidID uuid.UUID,
	callerID uuid.UUID,
) (*models.Bid, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		b, err := s.bidRepo.GetByID(ctx, bidID)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		l, err := s.listingRepo.GetByID(ctx, b.ListingID)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, utils.ErrNotFound
		}
		if l.SellerID != callerID {
			return nil, utils.ErrUnauthorized
		}
		rejected, err := s.bidRepo.UpdateStatusAtomic(ctx, bidID, models.BidStatusRejected, b.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return rejected, err
	}
	latest, _ := s.bidRepo.GetByID(ctx, bidID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// WithdrawBid lets the bidder pull a PENDING bid. An accepted bid cannot be
// withdrawn; backing out of an accepted sale goes through the dispute flow.
func (s *MarketplaceService) WithdrawBid(
	ctx context.Context,
	bidID uuid.UUID,
	callerID uuid.UUID,
) (*models.Bid, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		b, err := s.bidRepo.GetByID(ctx, bidID)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		if b.BidderID != callerID {
			return nil, utils.ErrUnauthorized
		}
		withdrawn, err := s.bidRepo.UpdateStatusAtomic(ctx, bidID, models.BidStatusWithdrawn, b.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return withdrawn, err
	}
	latest, _ := s.bidRepo.GetByID(ctx, bidID)
	return nil, utils.NewRowVersionConflictError(latest)
}
