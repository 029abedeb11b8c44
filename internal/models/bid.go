package models

import (
	"time"

	"github.com/google/uuid"
)

type BidStatusType string

const (
	BidStatusPending   BidStatusType = "PENDING"
	BidStatusAccepted  BidStatusType = "ACCEPTED"
	BidStatusRejected  BidStatusType = "REJECTED"
	BidStatusWithdrawn BidStatusType = "WITHDRAWN"
	BidStatusExpired   BidStatusType = "EXPIRED"
)

type Bid struct {
	Versioned

	ID        uuid.UUID     `json:"id"`
	ListingID uuid.UUID     `json:"listing_id"`
	BidderID  uuid.UUID     `json:"bidder_id"`
	Amount    float64       `json:"amount"`
	Message   *string       `json:"message,omitempty"`
	Status    BidStatusType `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Bid) IsTerminal() bool {
	return b.Status != BidStatusPending
}
