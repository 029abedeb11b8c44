package models

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatusType string

const (
	ListingStatusActive    ListingStatusType = "ACTIVE"
	ListingStatusSold      ListingStatusType = "SOLD"
	ListingStatusCancelled ListingStatusType = "CANCELLED"
	ListingStatusExpired   ListingStatusType = "EXPIRED"
)

type Listing struct {
	Versioned

	ID         uuid.UUID         `json:"id"`
	PropertyID uuid.UUID         `json:"property_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	Price      float64           `json:"price"`
	Status     ListingStatusType `json:"status"`
	ExpiresAt  time.Time         `json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Listing) IsTerminal() bool {
	return l.Status != ListingStatusActive
}

// IsExpired reports whether the listing's window has passed, regardless of
// whether the sweeper has caught up with it yet.
func (l *Listing) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}
