package models

import (
	"time"

	"github.com/google/uuid"
)

type PropertyStatusType string

const (
	PropertyStatusRegistered  PropertyStatusType = "REGISTERED"
	PropertyStatusVerified    PropertyStatusType = "VERIFIED"
	PropertyStatusTokenized   PropertyStatusType = "TOKENIZED"
	PropertyStatusListed      PropertyStatusType = "LISTED"
	PropertyStatusSold        PropertyStatusType = "SOLD"
	PropertyStatusDeactivated PropertyStatusType = "DEACTIVATED"
)

type Property struct {
	Versioned

	ID           uuid.UUID          `json:"id"`
	OnChainID    string             `json:"on_chain_id"`
	OwnerID      uuid.UUID          `json:"owner_id"`
	Valuation    float64            `json:"valuation"`
	LocationHash string             `json:"location_hash"`
	DocumentHash string             `json:"document_hash"`
	TotalShares  int64              `json:"total_shares"`
	Status       PropertyStatusType `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further lifecycle input is accepted.
func (p *Property) IsTerminal() bool {
	return p.Status == PropertyStatusSold || p.Status == PropertyStatusDeactivated
}
