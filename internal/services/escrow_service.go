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

type EscrowService struct {
	cfg         *config.Config
	escrowRepo  repositories.EscrowRepository
	listingRepo repositories.ListingRepository
	bidRepo     repositories.BidRepository
	gateway     ledger.Gateway
	notifier    *NotificationService
}

func NewEscrowService(
	cfg *config.Config,
	escrowRepo repositories.EscrowRepository,
	listingRepo repositories.ListingRepository,
	bidRepo repositories.BidRepository,
	gateway ledger.Gateway,
	notifier *NotificationService,
) *EscrowService {
	return &EscrowService{
		cfg:         cfg,
		escrowRepo:  escrowRepo,
		listingRepo: listingRepo,
		bidRepo:     bidRepo,
		gateway:     gateway,
		notifier:    notifier,
	}
}

// DepositEscrow locks the buyer's funds and records the escrow as DEPOSITED.
// The ledger call runs first; if it fails no escrow row is created and the
// caller gets ErrLedgerUnavailable to retry. The listing id doubles as the
// idempotency key, so a retry after a gateway timeout lands on the same lock
// and the existing escrow row comes back unchanged.
func (s *EscrowService) DepositEscrow(
	ctx context.Context,
	listingID uuid.UUID,
	buyerID uuid.UUID,
	amount float64,
) (*models.Escrow, error) {
	l, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if l.Status != models.ListingStatusSold {
		return nil, utils.ErrWrongStatus
	}

	accepted, err := s.bidRepo.GetAcceptedByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if accepted == nil || accepted.BidderID != buyerID {
		return nil, utils.ErrUnauthorized
	}
	if amount != accepted.Amount {
		return nil, fmt.Errorf("deposit amount %f does not match accepted bid %f", amount, accepted.Amount)
	}

	existing, err := s.escrowRepo.GetNonTerminalByListingID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.EscrowStatusDeposited && existing.BuyerID == buyerID {
			// Retry of a deposit that already settled.
			return existing, nil
		}
		return nil, utils.ErrEscrowConflict
	}

	e := &models.Escrow{
		ID:        uuid.New(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  l.SellerID,
		Amount:    amount,
	}

	idemKey := listingID.String()
	if err := s.gateway.LockFunds(ctx, e.ID, buyerID, amount, idemKey); err != nil {
		return nil, err
	}

	created, wasNew, err := s.escrowRepo.CreateDepositedIfAbsent(ctx, e)
	if err != nil {
		return nil, err
	}
	if !wasNew && created != nil && created.BuyerID != buyerID {
		return nil, utils.ErrEscrowConflict
	}
	return created, nil
}

func (s *EscrowService) GetEscrow(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return s.escrowRepo.GetByID(ctx, id)
}

// ReleaseEscrow finalizes the sale: the gateway settles funds to the seller,
// then escrow -> RELEASED, property ownership moves to the buyer and the
// property goes SOLD in one transaction. The gateway call precedes the local
// commit so a gateway failure leaves nothing half-released; the idempotency
// key makes the re-settlement on a local conflict retry a no-op.
func (s *EscrowService) ReleaseEscrow(
	ctx context.Context,
	escrowID uuid.UUID,
	callerID uuid.UUID,
) (*models.Escrow, error) {
	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	if e.BuyerID != callerID && !s.cfg.IsAdmin(callerID) {
		return nil, utils.ErrUnauthorized
	}
	if e.Status != models.EscrowStatusDeposited {
		return nil, utils.ErrWrongStatus
	}

	idemKey := escrowID.String()
	if err := s.gateway.FinalizeTransfer(ctx, escrowID, idemKey); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		released, err := s.escrowRepo.ReleaseAtomic(ctx, escrowID, e.RowVersion)
		if isVersionConflict(err) {
			e, err = s.escrowRepo.GetByID(ctx, escrowID)
			if err != nil {
				return nil, err
			}
			if e == nil || e.Status != models.EscrowStatusDeposited {
				break
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.notifier != nil && released != nil {
			s.notifier.NotifyEscrowReleased(ctx, released)
		}
		return released, nil
	}
	latest, _ := s.escrowRepo.GetByID(ctx, escrowID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// FileDispute freezes a DEPOSITED escrow. Buyer or seller may file.
func (s *EscrowService) FileDispute(
	ctx context.Context,
	escrowID uuid.UUID,
	callerID uuid.UUID,
	reason string,
) (*models.Escrow, error) {
	if reason == "" {
		return nil, fmt.Errorf("dispute requires a reason")
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		e, err := s.escrowRepo.GetByID(ctx, escrowID)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, nil
		}
		if e.BuyerID != callerID && e.SellerID != callerID {
			return nil, utils.ErrUnauthorized
		}
		if e.Status != models.EscrowStatusDeposited {
			return nil, utils.ErrWrongStatus
		}
		disputed, err := s.escrowRepo.FileDisputeAtomic(ctx, escrowID, reason, e.RowVersion)
		if isVersionConflict(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.notifier != nil && disputed != nil {
			s.notifier.NotifyDisputeFiled(ctx, disputed)
		}
		return disputed, nil
	}
	latest, _ := s.escrowRepo.GetByID(ctx, escrowID)
	return nil, utils.NewRowVersionConflictError(latest)
}

// ResolveDispute closes a DISPUTED escrow under administrative authority.
// releaseToSeller=true settles funds to the seller and the sale stands;
// false refunds the buyer and the property reverts to TOKENIZED for
// relisting. Either way the escrow ends RESOLVED and an audit record is
// written in the same transaction.
func (s *EscrowService) ResolveDispute(
	ctx context.Context,
	escrowID uuid.UUID,
	resolverID uuid.UUID,
	releaseToSeller bool,
	justification string,
) (*models.Escrow, error) {
	if !s.cfg.IsAdmin(resolverID) {
		return nil, utils.ErrUnauthorized
	}
	if justification == "" {
		return nil, fmt.Errorf("dispute resolution requires a justification")
	}

	e, err := s.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, nil
	}
	if e.Status != models.EscrowStatusDisputed {
		return nil, utils.ErrWrongStatus
	}

	idemKey := escrowID.String()
	if releaseToSeller {
		err = s.gateway.FinalizeTransfer(ctx, escrowID, idemKey)
	} else {
		err = s.gateway.ReleaseLock(ctx, escrowID, idemKey)
	}
	if err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]any{
		"release_to_seller": releaseToSeller,
		"at":                time.Now().UTC().Format(time.RFC3339),
	})
	raw := json.RawMessage(details)
	audit := &models.AuditLog{
		ID:            uuid.New(),
		ActorID:       resolverID,
		Action:        models.AuditDisputeResolved,
		TargetID:      escrowID,
		TargetType:    models.TargetEscrow,
		Justification: justification,
		Details:       &raw,
	}

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		resolved, err := s.escrowRepo.ResolveAtomic(ctx, escrowID, releaseToSeller, audit, e.RowVersion)
		if isVersionConflict(err) {
			e, err = s.escrowRepo.GetByID(ctx, escrowID)
			if err != nil {
				return nil, err
			}
			if e == nil || e.Status != models.EscrowStatusDisputed {
				break
			}
			continue
		}
		return resolved, err
	}
	latest, _ := s.escrowRepo.GetByID(ctx, escrowID)
	return nil, utils.NewRowVersionConflictError(latest)
}
