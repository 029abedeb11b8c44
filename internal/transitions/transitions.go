// Package transitions holds the status machines for every lifecycle entity.
// Each table is an explicit allow-list; anything not present is rejected.
// The tables are shared by the interactive coordinator and the expiry sweeper
// so that time-based transitions obey exactly the same rules.
package transitions

import (
	"fmt"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
)

// InvalidTransitionError identifies a status pair that is not in the
// entity's allow-list. Controllers match it with errors.As.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: %s %s -> %s", e.Entity, e.From, e.To)
}

var propertyTable = map[models.PropertyStatusType][]models.PropertyStatusType{
	models.PropertyStatusRegistered: {models.PropertyStatusVerified, models.PropertyStatusDeactivated},
	models.PropertyStatusVerified:   {models.PropertyStatusTokenized, models.PropertyStatusDeactivated},
	models.PropertyStatusTokenized:  {models.PropertyStatusListed, models.PropertyStatusDeactivated},
	models.PropertyStatusListed:     {models.PropertyStatusSold, models.PropertyStatusTokenized, models.PropertyStatusDeactivated},
	// SOLD and DEACTIVATED accept no further input. Administrative override
	// bypasses these tables through a separate audited operation.
	models.PropertyStatusSold:        {},
	models.PropertyStatusDeactivated: {},
}

var verificationTable = map[models.VerificationStatusType][]models.VerificationStatusType{
	models.VerificationStatusPending: {
		models.VerificationStatusInProgress,
		models.VerificationStatusApproved,
		models.VerificationStatusRejected,
		models.VerificationStatusExpired,
	},
	models.VerificationStatusInProgress: {
		models.VerificationStatusApproved,
		models.VerificationStatusRejected,
		models.VerificationStatusExpired,
	},
	models.VerificationStatusApproved: {},
	models.VerificationStatusRejected: {},
	models.VerificationStatusExpired:  {},
}

var listingTable = map[models.ListingStatusType][]models.ListingStatusType{
	models.ListingStatusActive: {
		models.ListingStatusSold,
		models.ListingStatusCancelled,
		models.ListingStatusExpired,
	},
	models.ListingStatusSold:      {},
	models.ListingStatusCancelled: {},
	models.ListingStatusExpired:   {},
}

var bidTable = map[models.BidStatusType][]models.BidStatusType{
	models.BidStatusPending: {
		models.BidStatusAccepted,
		models.BidStatusRejected,
		models.BidStatusWithdrawn,
		models.BidStatusExpired,
	},
	models.BidStatusAccepted:  {},
	models.BidStatusRejected:  {},
	models.BidStatusWithdrawn: {},
	models.BidStatusExpired:   {},
}

var escrowTable = map[models.EscrowStatusType][]models.EscrowStatusType{
	models.EscrowStatusPending: {
		models.EscrowStatusDeposited,
		models.EscrowStatusCancelled,
	},
	models.EscrowStatusDeposited: {
		models.EscrowStatusReleased,
		models.EscrowStatusDisputed,
		models.EscrowStatusCancelled,
	},
	models.EscrowStatusDisputed: {
		models.EscrowStatusResolved,
	},
	models.EscrowStatusReleased:  {},
	models.EscrowStatusCancelled: {},
	models.EscrowStatusResolved:  {},
}

func contains[S ~string](list []S, want S) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func CanProperty(from, to models.PropertyStatusType) bool {
	return contains(propertyTable[from], to)
}

func CanVerification(from, to models.VerificationStatusType) bool {
	return contains(verificationTable[from], to)
}

func CanListing(from, to models.ListingStatusType) bool {
	return contains(listingTable[from], to)
}

func CanBid(from, to models.BidStatusType) bool {
	return contains(bidTable[from], to)
}

func CanEscrow(from, to models.EscrowStatusType) bool {
	return contains(escrowTable[from], to)
}

// Check variants return the typed error for the coordinator to surface.

func CheckProperty(from, to models.PropertyStatusType) error {
	if !CanProperty(from, to) {
		return &InvalidTransitionError{Entity: "property", From: string(from), To: string(to)}
	}
	return nil
}

func CheckVerification(from, to models.VerificationStatusType) error {
	if !CanVerification(from, to) {
		return &InvalidTransitionError{Entity: "verification_request", From: string(from), To: string(to)}
	}
	return nil
}

func CheckListing(from, to models.ListingStatusType) error {
	if !CanListing(from, to) {
		return &InvalidTransitionError{Entity: "listing", From: string(from), To: string(to)}
	}
	return nil
}

func CheckBid(from, to models.BidStatusType) error {
	if !CanBid(from, to) {
		return &InvalidTransitionError{Entity: "bid", From: string(from), To: string(to)}
	}
	return nil
}

func CheckEscrow(from, to models.EscrowStatusType) error {
	if !CanEscrow(from, to) {
		return &InvalidTransitionError{Entity: "escrow", From: string(from), To: string(to)}
	}
	return nil
}
