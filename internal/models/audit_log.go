package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditStatusOverride  AuditAction = "STATUS_OVERRIDE"
	AuditDisputeResolved AuditAction = "DISPUTE_RESOLVED"
	AuditDelete          AuditAction = "DELETE"
)

type AuditTargetType string

const (
	TargetProperty AuditTargetType = "PROPERTY"
	TargetListing  AuditTargetType = "LISTING"
	TargetBid      AuditTargetType = "BID"
	TargetEscrow   AuditTargetType = "ESCROW"
)

type AuditLog struct {
	ID            uuid.UUID        `json:"id"`
	ActorID       uuid.UUID        `json:"actor_id"`
	Action        AuditAction      `json:"action"`
	TargetID      uuid.UUID        `json:"target_id"`
	TargetType    AuditTargetType  `json:"target_type"`
	Justification string           `json:"justification"`
	Details       *json.RawMessage `json:"details,omitempty"` // JSONB field for before/after states
	CreatedAt     time.Time        `json:"created_at"`
}
