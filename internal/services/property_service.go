package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/ledger"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/repositories"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type PropertyService struct {
	cfg       *config.Config
	propRepo  repositories.PropertyRepository
	vrRepo    repositories.VerificationRequestRepository
	auditRepo repositories.AuditLogRepository
	gateway   ledger.Gateway
}

func NewPropertyService(
	cfg *config.Config,
	propRepo repositories.PropertyRepository,
	vrRepo repositories.VerificationRequestRepository,
	auditRepo repositories.AuditLogRepository,
	gateway ledger.Gateway,
) *PropertyService {
	return &PropertyService{
		cfg:       cfg,
		propRepo:  propRepo,
		vrRepo:    vrRepo,
		auditRepo: auditRepo,
		gateway:   gateway,
	}
}

// RegisterProperty creates a property in REGISTERED. The location hash is
// unique across properties; a second registration of the same parcel fails
// with ErrDuplicateProperty.
func (s *PropertyService) RegisterProperty(
	ctx context.Context,
	ownerID uuid.UUID,
	valuation float64,
	locationHash string,
	documentHash string,
) (*models.Property, error) {
	p := &models.Property{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Valuation:    valuation,
		LocationHash: locationHash,
		DocumentHash: documentHash,
		Status:       models.PropertyStatusRegistered,
	}
	if err := s.propRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.propRepo.GetByID(ctx, p.ID)
}

func (s *PropertyService) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return s.propRepo.GetByID(ctx, id)
}

func (s *PropertyService) ListPropertiesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error) {
	return s.propRepo.ListByOwnerID(ctx, ownerID)
}

// RequestVerification opens a verification request for a REGISTERED property.
// At most one request may be open per property at a time.
func (s *PropertyService) RequestVerification(
	ctx context.Context,
	propertyID uuid.UUID,
	requesterID uuid.UUID,
	documentHash string,
) (*models.VerificationRequest, error) {
	prop, err := s.propRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, nil
	}
	if prop.OwnerID != requesterID {
		return nil, utils.ErrUnauthorized
	}
	if prop.Status != models.PropertyStatusRegistered {
		return nil, utils.ErrWrongStatus
	}

	open, err := s.vrRepo.GetOpenByPropertyID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, utils.ErrVerificationInProgress
	}

	vr := &models.VerificationRequest{
		ID:           uuid.New(),
		PropertyID:   propertyID,
		RequesterID:  requesterID,
		DocumentHash: documentHash,
		Status:       models.VerificationStatusPending,
	}
	if err := s.vrRepo.Create(ctx, vr); err != nil {
		return nil, err
	}
	return s.vrRepo.GetByID(ctx, vr.ID)
}

// StartVerification marks a PENDING request IN_PROGRESS and records the
// verifier working it.
func (s *PropertyService) StartVerification(
	ctx context.Context,
	requestID uuid.UUID,
	verifierID uuid.UUID,
) (*models.VerificationRequest, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		vr, err := s.vrRepo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if vr == nil {
			return nil, nil
		}
		updated, err := s.vrRepo.MarkInProgressAtomic(ctx, requestID, verifierID, vr.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return updated, err
	}
	latest, _ := s.vrRepo.GetByID(ctx, requestID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// ResolveVerification approves or rejects an open request. Approval moves the
// property REGISTERED -> VERIFIED in the same transaction; rejection leaves it
// REGISTERED so the owner can re-request with corrected documents.
func (s *PropertyService) ResolveVerification(
	ctx context.Context,
	requestID uuid.UUID,
	verifierID uuid.UUID,
	approved bool,
	resultHash *string,
) (*models.VerificationRequest, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		vr, err := s.vrRepo.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if vr == nil {
			return nil, nil
		}
		if vr.IsTerminal() {
			return nil, utils.ErrWrongStatus
		}
		updated, err := s.vrRepo.ResolveAtomic(ctx, requestID, approved, verifierID, resultHash, vr.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		return updated, err
	}
	latest, _ := s.vrRepo.GetByID(ctx, requestID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// TokenizeProperty mints on-chain shares for a VERIFIED property. The ledger
// call runs first with the property id as idempotency key; only after it
// succeeds is the local transition applied, so a retried call after a version
// conflict re-uses the same mint.
func (s *PropertyService) TokenizeProperty(
	ctx context.Context,
	propertyID uuid.UUID,
	callerID uuid.UUID,
	totalShares int64,
) (*models.Property, error) {
	prop, err := s.propRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, nil
	}
	if prop.OwnerID != callerID {
		return nil, utils.ErrUnauthorized
	}
	if prop.Status != models.PropertyStatusVerified {
		return nil, utils.ErrNotVerified
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("total shares must be positive, got %d", totalShares)
	}

	idemKey := propertyID.String()
	onChainID, err := s.gateway.TokenizeProperty(ctx, propertyID, totalShares, idemKey)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		updated, err := s.propRepo.SetTokenizedAtomic(ctx, propertyID, onChainID, totalShares, prop.RowVersion)
		if isVersionConflict(err) {
			prop, err = s.propRepo.GetByID(ctx, propertyID)
			if err != nil {
				return nil, err
			}
			if prop == nil || prop.Status != models.PropertyStatusVerified {
				break
			}
			continue
		}
		return updated, err
	}
	latest, _ := s.propRepo.GetByID(ctx, propertyID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// DeleteProperty physically removes a property record. Permitted only for
// terminal or never-activated properties with no non-terminal dependents.
func (s *PropertyService) DeleteProperty(
	ctx context.Context,
	propertyID uuid.UUID,
	callerID uuid.UUID,
) error {
	prop, err := s.propRepo.GetByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if prop == nil {
		return utils.ErrNotFound
	}
	if prop.OwnerID != callerID && !s.cfg.IsAdmin(callerID) {
		return utils.ErrUnauthorized
	}
	return s.propRepo.DeleteGuardedAtomic(ctx, propertyID)
}

// OverridePropertyStatus is the privileged escape hatch around the transition
// table. It requires administrative authority and a justification, and writes
// an audit record alongside the change.
func (s *PropertyService) OverridePropertyStatus(
	ctx context.Context,
	propertyID uuid.UUID,
	adminID uuid.UUID,
	newStatus models.PropertyStatusType,
	justification string,
) (*models.Property, error) {
	if !s.cfg.IsAdmin(adminID) {
		return nil, utils.ErrUnauthorized
	}
	if justification == "" {
		return nil, fmt.Errorf("status override requires a justification")
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		prop, err := s.propRepo.GetByID(ctx, propertyID)
		if err != nil {
			return nil, err
		}
		if prop == nil {
			return nil, nil
		}
		updated, err := s.propRepo.OverrideStatusAtomic(ctx, propertyID, newStatus, prop.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		details, _ := json.Marshal(map[string]string{
			"from": string(prop.Status),
			"to":   string(newStatus),
			"at":   time.Now().UTC().Format(time.RFC3339),
		})
		raw := json.RawMessage(details)
		entry := &models.AuditLog{
			ID:            uuid.New(),
			ActorID:       adminID,
			Action:        models.AuditStatusOverride,
			TargetID:      propertyID,
			TargetType:    models.TargetProperty,
			Justification: justification,
			Details:       &raw,
		}
		if aErr := s.auditRepo.Create(ctx, entry); aErr != nil {
			utils.Logger.WithError(aErr).Errorf("Failed to write audit record for property override %s", propertyID)
		}
		return updated, nil
	}
	latest, _ := s.propRepo.GetByID(ctx, propertyID)
	return nil, utils.NewRowVersionConflictError(latest)
}
