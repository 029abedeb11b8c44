package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// DryRunGateway acknowledges every call without touching a ledger node. Used
// in local development and when the ledger_dry_run flag is on.
type DryRunGateway struct{}

func NewDryRunGateway() *DryRunGateway {
	return &DryRunGateway{}
}

func (g *DryRunGateway) TokenizeProperty(_ context.Context, propertyID uuid.UUID, totalShares int64, idemKey string) (string, error) {
	utils.Logger.Infof("dry-run ledger: tokenize property %s (%d shares, idem %s)", propertyID, totalShares, idemKey)
	return fmt.Sprintf("dryrun-%s", propertyID), nil
}

func (g *DryRunGateway) LockFunds(_ context.Context, escrowID uuid.UUID, buyerID uuid.UUID, amount float64, idemKey string) error {
	utils.Logger.Infof("dry-run ledger: lock %.2f for escrow %s, buyer %s (idem %s)", amount, escrowID, buyerID, idemKey)
	return nil
}

func (g *DryRunGateway) FinalizeTransfer(_ context.Context, escrowID uuid.UUID, idemKey string) error {
	utils.Logger.Infof("dry-run ledger: finalize escrow %s (idem %s)", escrowID, idemKey)
	return nil
}

func (g *DryRunGateway) ReleaseLock(_ context.Context, escrowID uuid.UUID, idemKey string) error {
	utils.Logger.Infof("dry-run ledger: release escrow %s (idem %s)", escrowID, idemKey)
	return nil
}
