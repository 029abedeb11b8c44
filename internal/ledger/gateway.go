package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Gateway is the on-chain settlement collaborator. Every call carries an
// idempotency key derived from the domain entity it settles, so a retried
// call after a timeout never double-moves funds.
type Gateway interface {
	// TokenizeProperty mints the share tokens for a VERIFIED property and
	// returns the on-chain identifier.
	TokenizeProperty(ctx context.Context, propertyID uuid.UUID, totalShares int64, idemKey string) (onChainID string, err error)

	// LockFunds reserves the buyer's funds against the escrow.
	LockFunds(ctx context.Context, escrowID uuid.UUID, buyerID uuid.UUID, amount float64, idemKey string) error

	// FinalizeTransfer settles locked funds to the seller and moves the
	// property tokens to the buyer.
	FinalizeTransfer(ctx context.Context, escrowID uuid.UUID, idemKey string) error

	// ReleaseLock returns locked funds to the buyer.
	ReleaseLock(ctx context.Context, escrowID uuid.UUID, idemKey string) error
}
