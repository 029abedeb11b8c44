package models

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatusType string

const (
	VerificationStatusPending    VerificationStatusType = "PENDING"
	VerificationStatusInProgress VerificationStatusType = "IN_PROGRESS"
	VerificationStatusApproved   VerificationStatusType = "APPROVED"
	VerificationStatusRejected   VerificationStatusType = "REJECTED"
	VerificationStatusExpired    VerificationStatusType = "EXPIRED"
)

// VerificationRequest tracks a single verification attempt for a property.
// A property may accumulate many requests over time but only one may be
// PENDING or IN_PROGRESS at once.
type VerificationRequest struct {
	Versioned

	ID           uuid.UUID              `json:"id"`
	PropertyID   uuid.UUID              `json:"property_id"`
	RequesterID  uuid.UUID              `json:"requester_id"`
	DocumentHash string                 `json:"document_hash"`
	Status       VerificationStatusType `json:"status"`
	VerifierID   *uuid.UUID             `json:"verifier_id,omitempty"`
	ResultHash   *string                `json:"result_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (vr *VerificationRequest) IsTerminal() bool {
	switch vr.Status {
	case VerificationStatusApproved, VerificationStatusRejected, VerificationStatusExpired:
		return true
	}
	return false
}
