package models

import (
	"time"

	"github.com/google/uuid"
)

type EscrowStatusType string

const (
	EscrowStatusPending   EscrowStatusType = "PENDING"
	EscrowStatusDeposited EscrowStatusType = "DEPOSITED"
	EscrowStatusReleased  EscrowStatusType = "RELEASED"
	EscrowStatusDisputed  EscrowStatusType = "DISPUTED"
	EscrowStatusCancelled EscrowStatusType = "CANCELLED"
	EscrowStatusResolved  EscrowStatusType = "RESOLVED"
)

// Escrow holds funds between bid acceptance and final settlement. At most one
// non-terminal escrow may exist per listing.
type Escrow struct {
	Versioned

	ID            uuid.UUID        `json:"id"`
	ListingID     uuid.UUID        `json:"listing_id"`
	BuyerID       uuid.UUID        `json:"buyer_id"`
	SellerID      uuid.UUID        `json:"seller_id"`
	Amount        float64          `json:"amount"`
	Status        EscrowStatusType `json:"status"`
	DisputeReason *string          `json:"dispute_reason,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

func (e *Escrow) IsTerminal() bool {
	switch e.Status {
	case EscrowStatusReleased, EscrowStatusCancelled, EscrowStatusResolved:
		return true
	}
	return false
}
