package transitions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
)

func TestPropertyTransitions(t *testing.T) {
	allowed := [][2]models.PropertyStatusType{
		{models.PropertyStatusRegistered, models.PropertyStatusVerified},
		{models.PropertyStatusRegistered, models.PropertyStatusDeactivated},
		{models.PropertyStatusVerified, models.PropertyStatusTokenized},
		{models.PropertyStatusVerified, models.PropertyStatusDeactivated},
		{models.PropertyStatusTokenized, models.PropertyStatusListed},
		{models.PropertyStatusTokenized, models.PropertyStatusDeactivated},
		{models.PropertyStatusListed, models.PropertyStatusSold},
		{models.PropertyStatusListed, models.PropertyStatusTokenized},
		{models.PropertyStatusListed, models.PropertyStatusDeactivated},
	}
	for _, pair := range allowed {
		require.True(t, CanProperty(pair[0], pair[1]), "%s -> %s should be allowed", pair[0], pair[1])
	}

	denied := [][2]models.PropertyStatusType{
		{models.PropertyStatusRegistered, models.PropertyStatusTokenized},
		{models.PropertyStatusRegistered, models.PropertyStatusListed},
		{models.PropertyStatusVerified, models.PropertyStatusListed},
		{models.PropertyStatusVerified, models.PropertyStatusRegistered},
		{models.PropertyStatusTokenized, models.PropertyStatusVerified},
		{models.PropertyStatusTokenized, models.PropertyStatusSold},
		{models.PropertyStatusSold, models.PropertyStatusListed},
		{models.PropertyStatusSold, models.PropertyStatusDeactivated},
		{models.PropertyStatusDeactivated, models.PropertyStatusRegistered},
	}
	for _, pair := range denied {
		require.False(t, CanProperty(pair[0], pair[1]), "%s -> %s should be denied", pair[0], pair[1])
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	propTargets := []models.PropertyStatusType{
		models.PropertyStatusRegistered, models.PropertyStatusVerified,
		models.PropertyStatusTokenized, models.PropertyStatusListed,
		models.PropertyStatusSold, models.PropertyStatusDeactivated,
	}
	for _, to := range propTargets {
		require.False(t, CanProperty(models.PropertyStatusSold, to))
		require.False(t, CanProperty(models.PropertyStatusDeactivated, to))
	}

	escrowTargets := []models.EscrowStatusType{
		models.EscrowStatusPending, models.EscrowStatusDeposited,
		models.EscrowStatusReleased, models.EscrowStatusDisputed,
		models.EscrowStatusResolved, models.EscrowStatusCancelled,
	}
	for _, to := range escrowTargets {
		require.False(t, CanEscrow(models.EscrowStatusReleased, to))
		require.False(t, CanEscrow(models.EscrowStatusResolved, to))
		require.False(t, CanEscrow(models.EscrowStatusCancelled, to))
	}
}

func TestVerificationTransitions(t *testing.T) {
	require.True(t, CanVerification(models.VerificationStatusPending, models.VerificationStatusInProgress))
	require.True(t, CanVerification(models.VerificationStatusPending, models.VerificationStatusApproved))
	require.True(t, CanVerification(models.VerificationStatusPending, models.VerificationStatusExpired))
	require.True(t, CanVerification(models.VerificationStatusInProgress, models.VerificationStatusRejected))
	require.True(t, CanVerification(models.VerificationStatusInProgress, models.VerificationStatusExpired))

	require.False(t, CanVerification(models.VerificationStatusInProgress, models.VerificationStatusPending))
	require.False(t, CanVerification(models.VerificationStatusApproved, models.VerificationStatusRejected))
	require.False(t, CanVerification(models.VerificationStatusExpired, models.VerificationStatusInProgress))
}

func TestListingAndBidTransitions(t *testing.T) {
	require.True(t, CanListing(models.ListingStatusActive, models.ListingStatusSold))
	require.True(t, CanListing(models.ListingStatusActive, models.ListingStatusCancelled))
	require.True(t, CanListing(models.ListingStatusActive, models.ListingStatusExpired))
	require.False(t, CanListing(models.ListingStatusSold, models.ListingStatusActive))
	require.False(t, CanListing(models.ListingStatusExpired, models.ListingStatusSold))

	require.True(t, CanBid(models.BidStatusPending, models.BidStatusAccepted))
	require.True(t, CanBid(models.BidStatusPending, models.BidStatusWithdrawn))
	require.False(t, CanBid(models.BidStatusAccepted, models.BidStatusWithdrawn))
	require.False(t, CanBid(models.BidStatusRejected, models.BidStatusAccepted))
	require.False(t, CanBid(models.BidStatusWithdrawn, models.BidStatusPending))
}

func TestEscrowTransitions(t *testing.T) {
	require.True(t, CanEscrow(models.EscrowStatusPending, models.EscrowStatusDeposited))
	require.True(t, CanEscrow(models.EscrowStatusDeposited, models.EscrowStatusReleased))
	require.True(t, CanEscrow(models.EscrowStatusDeposited, models.EscrowStatusDisputed))
	require.True(t, CanEscrow(models.EscrowStatusDisputed, models.EscrowStatusResolved))

	require.False(t, CanEscrow(models.EscrowStatusPending, models.EscrowStatusReleased))
	require.False(t, CanEscrow(models.EscrowStatusDisputed, models.EscrowStatusReleased))
	require.False(t, CanEscrow(models.EscrowStatusDisputed, models.EscrowStatusCancelled))
}

func TestCheckReturnsTypedError(t *testing.T) {
	err := CheckProperty(models.PropertyStatusSold, models.PropertyStatusListed)
	require.Error(t, err)

	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "property", invalid.Entity)
	require.Equal(t, string(models.PropertyStatusSold), invalid.From)
	require.Equal(t, string(models.PropertyStatusListed), invalid.To)

	require.NoError(t, CheckProperty(models.PropertyStatusListed, models.PropertyStatusSold))
}
