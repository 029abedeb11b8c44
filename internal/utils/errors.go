// internal/utils/errors.go
package utils

import (
	"errors"
)

/*
   Sentinel errors for lifecycle domain logic.
   The controller can do: if errors.Is(err, ErrXYZ) { ... }

   Domain errors are never retried automatically; infrastructure errors
   (ErrLedgerUnavailable) may be retried by the caller with the same
   idempotency key.
*/
var (
	ErrDuplicateProperty      = errors.New("duplicate_property")
	ErrVerificationInProgress = errors.New("verification_in_progress")
	ErrNotVerified            = errors.New("not_verified")
	ErrListingConflict        = errors.New("listing_conflict")
	ErrEscrowConflict         = errors.New("escrow_conflict")
	ErrSelfBidNotAllowed      = errors.New("self_bid_not_allowed")
	ErrListingExpired         = errors.New("listing_expired")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("not_found")
	ErrWrongStatus            = errors.New("wrong_status")
	ErrHasActiveChildren      = errors.New("has_active_children")

	// For concurrency conflicts
	ErrRowVersionConflict = errors.New("row_version_conflict")
	ErrNoRowsUpdated      = errors.New("no_rows_updated")

	// For settlement-layer failures (retryable)
	ErrLedgerUnavailable = errors.New("ledger_unavailable")
)

// RowVersionConflictError is returned when a concurrent writer won the race.
// It carries the latest row so the controller can return it to the client.
type RowVersionConflictError struct {
	Current any
}

func (e *RowVersionConflictError) Error() string {
	return "row_version_conflict"
}

func NewRowVersionConflictError(current any) error {
	return &RowVersionConflictError{Current: current}
}
