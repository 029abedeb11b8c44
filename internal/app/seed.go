package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/repositories"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// Fixed IDs so repeated boots (and local API clients) find the same rows.
var (
	seedOwnerID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	seedBuyerID = uuid.MustParse("22222222-2222-2222-2222-222222222222")

	seedRegisteredPropID = uuid.MustParse("aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaa1")
	seedVerifiedPropID   = uuid.MustParse("aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaa2")
	seedListedPropID     = uuid.MustParse("aaaaaaaa-aaaa-4aaa-aaaa-aaaaaaaaaaa3")

	seedVerificationID = uuid.MustParse("bbbbbbbb-bbbb-4bbb-bbbb-bbbbbbbbbbb1")
	seedListingID      = uuid.MustParse("cccccccc-cccc-4ccc-cccc-ccccccccccc1")
	seedBidID          = uuid.MustParse("dddddddd-dddd-4ddd-dddd-ddddddddddd1")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SeedTestData populates a handful of properties at different lifecycle
// stages plus an active listing with one pending bid. Idempotent: if the
// sentinel property exists the whole seed is skipped.
func SeedTestData(
	ctx context.Context,
	propRepo repositories.PropertyRepository,
	vrRepo repositories.VerificationRequestRepository,
	listingRepo repositories.ListingRepository,
	bidRepo repositories.BidRepository,
) error {
	if existing, err := propRepo.GetByID(ctx, seedRegisteredPropID); err != nil {
		return fmt.Errorf("check existing seed property: %w", err)
	} else if existing != nil {
		utils.Logger.Info("estate-service: seed data already present; skipping seeding")
		return nil
	}

	if err := seedRegisteredProperty(ctx, propRepo, vrRepo); err != nil {
		return err
	}
	if err := seedVerifiedProperty(ctx, propRepo); err != nil {
		return err
	}
	return seedActiveListing(ctx, propRepo, listingRepo, bidRepo)
}

// seedRegisteredProperty creates a fresh REGISTERED property with an open
// PENDING verification request, the state a verifier would pick up.
func seedRegisteredProperty(
	ctx context.Context,
	propRepo repositories.PropertyRepository,
	vrRepo repositories.VerificationRequestRepository,
) error {
	p := &models.Property{
		ID:           seedRegisteredPropID,
		OwnerID:      seedOwnerID,
		Valuation:    250_000,
		LocationHash: "seed-loc-registered-0001",
		DocumentHash: "seed-doc-registered-0001",
		Status:       models.PropertyStatusRegistered,
	}
	if err := propRepo.Create(ctx, p); err != nil {
		if isUniqueViolation(err) || errors.Is(err, utils.ErrDuplicateProperty) {
			utils.Logger.Infof("estate-service: seed property (id=%s) already exists; skipping.", p.ID)
			return nil
		}
		return fmt.Errorf("create seed property id=%s: %w", p.ID, err)
	}

	vr := &models.VerificationRequest{
		ID:           seedVerificationID,
		PropertyID:   p.ID,
		RequesterID:  seedOwnerID,
		DocumentHash: p.DocumentHash,
		Status:       models.VerificationStatusPending,
	}
	if err := vrRepo.Create(ctx, vr); err != nil {
		if isUniqueViolation(err) {
			utils.Logger.Infof("estate-service: seed verification request (id=%s) already exists; skipping.", vr.ID)
			return nil
		}
		return fmt.Errorf("create seed verification request id=%s: %w", vr.ID, err)
	}

	utils.Logger.Infof("estate-service: Created REGISTERED seed property (id=%s) with pending verification.", p.ID)
	return nil
}

// seedVerifiedProperty creates a VERIFIED property ready for tokenization.
func seedVerifiedProperty(ctx context.Context, propRepo repositories.PropertyRepository) error {
	p := &models.Property{
		ID:           seedVerifiedPropID,
		OwnerID:      seedOwnerID,
		Valuation:    480_000,
		LocationHash: "seed-loc-verified-0001",
		DocumentHash: "seed-doc-verified-0001",
		Status:       models.PropertyStatusVerified,
	}
	if err := propRepo.Create(ctx, p); err != nil {
		if isUniqueViolation(err) || errors.Is(err, utils.ErrDuplicateProperty) {
			utils.Logger.Infof("estate-service: seed property (id=%s) already exists; skipping.", p.ID)
			return nil
		}
		return fmt.Errorf("create seed property id=%s: %w", p.ID, err)
	}
	utils.Logger.Infof("estate-service: Created VERIFIED seed property (id=%s).", p.ID)
	return nil
}

// seedActiveListing creates a TOKENIZED property, lists it, and places one
// pending bid from a second account so accept/reject flows can be exercised
// immediately.
func seedActiveListing(
	ctx context.Context,
	propRepo repositories.PropertyRepository,
	listingRepo repositories.ListingRepository,
	bidRepo repositories.BidRepository,
) error {
	p := &models.Property{
		ID:           seedListedPropID,
		OnChainID:    "seed-chain-0003",
		OwnerID:      seedOwnerID,
		Valuation:    620_000,
		LocationHash: "seed-loc-listed-0001",
		DocumentHash: "seed-doc-listed-0001",
		TotalShares:  1000,
		Status:       models.PropertyStatusTokenized,
	}
	if err := propRepo.Create(ctx, p); err != nil {
		if isUniqueViolation(err) || errors.Is(err, utils.ErrDuplicateProperty) {
			utils.Logger.Infof("estate-service: seed property (id=%s) already exists; skipping listing seed.", p.ID)
			return nil
		}
		return fmt.Errorf("create seed property id=%s: %w", p.ID, err)
	}

	l := &models.Listing{
		ID:         seedListingID,
		PropertyID: p.ID,
		SellerID:   seedOwnerID,
		Price:      650_000,
		Status:     models.ListingStatusActive,
		ExpiresAt:  time.Now().UTC().AddDate(0, 0, 30),
	}
	if _, err := listingRepo.CreateWithPropertyAtomic(ctx, l, 1); err != nil {
		return fmt.Errorf("create seed listing id=%s: %w", l.ID, err)
	}

	b := &models.Bid{
		ID:        seedBidID,
		ListingID: l.ID,
		BidderID:  seedBuyerID,
		Amount:    640_000,
		Message:   utils.Ptr("Seed bid: open to a quick close."),
		Status:    models.BidStatusPending,
	}
	if _, err := bidRepo.CreateWithListingAtomic(ctx, b); err != nil {
		return fmt.Errorf("create seed bid id=%s: %w", b.ID, err)
	}

	utils.Logger.Infof("estate-service: Created listed seed property (id=%s) with listing (id=%s) and pending bid (id=%s).", p.ID, l.ID, b.ID)
	return nil
}
