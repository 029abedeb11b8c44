package dtos

import (
	"github.com/google/uuid"
)

type HealthCheckResponse struct {
	Status string `json:"status"`
}

/* ─────────────────── property / verification ─────────────────── */

type RegisterPropertyRequest struct {
	Valuation    float64 `json:"valuation" validate:"required,gt=0"`
	LocationHash string  `json:"location_hash" validate:"required"`
	DocumentHash string  `json:"document_hash" validate:"required"`
}

type RequestVerificationRequest struct {
	PropertyID   uuid.UUID `json:"property_id" validate:"required"`
	DocumentHash string    `json:"document_hash" validate:"required"`
}

type StartVerificationRequest struct {
	RequestID uuid.UUID `json:"request_id" validate:"required"`
}

type ResolveVerificationRequest struct {
	RequestID  uuid.UUID `json:"request_id" validate:"required"`
	Approved   *bool     `json:"approved" validate:"required"`
	ResultHash *string   `json:"result_hash,omitempty"`
}

type TokenizePropertyRequest struct {
	PropertyID  uuid.UUID `json:"property_id" validate:"required"`
	TotalShares int64     `json:"total_shares" validate:"required,gt=0"`
}

type OverridePropertyStatusRequest struct {
	PropertyID    uuid.UUID `json:"property_id" validate:"required"`
	NewStatus     string    `json:"new_status" validate:"required"`
	Justification string    `json:"justification" validate:"required"`
}

/* ─────────────────── listing / bid ─────────────────── */

type CreateListingRequest struct {
	PropertyID uuid.UUID `json:"property_id" validate:"required"`
	Price      float64   `json:"price" validate:"required,gt=0"`
	// Expiry is computed server-side as now + duration.
	DurationSeconds int64 `json:"duration_seconds" validate:"required,gt=0"`
}

type PlaceBidRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Message   *string   `json:"message,omitempty"`
}

type BidActionRequest struct {
	BidID uuid.UUID `json:"bid_id" validate:"required"`
}

/* ─────────────────── escrow ─────────────────── */

type DepositEscrowRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
}

type FileDisputeRequest struct {
	EscrowID uuid.UUID `json:"escrow_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required"`
}

type ResolveDisputeRequest struct {
	EscrowID        uuid.UUID `json:"escrow_id" validate:"required"`
	ReleaseToSeller *bool     `json:"release_to_seller" validate:"required"`
	Justification   string    `json:"justification" validate:"required"`
}
