package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
)

func TestSweepExpiresListingsAndCascadesBids(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seller := uuid.New()
	p := f.tokenizedProperty(t, seller)
	l, err := f.marketplace.CreateListing(ctx, p.ID, seller, 100_000, 30*time.Millisecond)
	require.NoError(t, err)
	b, err := f.marketplace.PlaceBid(ctx, l.ID, uuid.New(), 95_000, nil)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, f.sweeper.RunExpirySweep(ctx))

	swept, err := f.marketplace.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingStatusExpired, swept.Status)

	expiredBid, err := f.bidRepo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidStatusExpired, expiredBid.Status)

	// Property back on the shelf for relisting.
	p2, err := f.properties.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.PropertyStatusTokenized, p2.Status)
}

func TestSweepIgnoresLiveListings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seller := uuid.New()
	p := f.tokenizedProperty(t, seller)
	l, err := f.marketplace.CreateListing(ctx, p.ID, seller, 100_000, listingTTL)
	require.NoError(t, err)

	require.NoError(t, f.sweeper.RunExpirySweep(ctx))

	live, err := f.marketplace.GetListing(ctx, l.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingStatusActive, live.Status)
}

func TestSweepExpiresStaleVerificationRequests(t *testing.T) {
	f := newFixture()
	f.cfg.VerificationMaxAge = 0 // everything open is immediately stale
	ctx := context.Background()
	owner := uuid.New()

	p, err := f.properties.RegisterProperty(ctx, owner, 300_000, "loc-sweep", "doc-sweep")
	require.NoError(t, err)
	vr, err := f.properties.RequestVerification(ctx, p.ID, owner, "doc-sweep")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.sweeper.RunExpirySweep(ctx))

	expired, err := f.vrRepo.GetByID(ctx, vr.ID)
	require.NoError(t, err)
	require.Equal(t, models.VerificationStatusExpired, expired.Status)

	// The owner can open a fresh request afterwards.
	vr2, err := f.properties.RequestVerification(ctx, p.ID, owner, "doc-sweep-2")
	require.NoError(t, err)
	require.Equal(t, models.VerificationStatusPending, vr2.Status)
}
