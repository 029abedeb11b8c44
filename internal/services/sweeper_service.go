package services

import (
	"context"
	"time"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/config"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/repositories"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// SweeperService reconciles time-based transitions: listings past their
// expiry window and verification requests nobody resolved.
type SweeperService struct {
	cfg         *config.Config
	listingRepo repositories.ListingRepository
	vrRepo      repositories.VerificationRequestRepository
}

func NewSweeperService(
	cfg *config.Config,
	listingRepo repositories.ListingRepository,
	vrRepo repositories.VerificationRequestRepository,
) *SweeperService {
	return &SweeperService{
		cfg:         cfg,
		listingRepo: listingRepo,
		vrRepo:      vrRepo,
	}
}

// RunExpirySweep runs on a cron interval. Each expired listing goes ACTIVE ->
// EXPIRED with its PENDING bids cascaded to EXPIRED through the same guarded
// repository atomics interactive requests use, so a sweep racing a
// cancel/accept loses its version check and skips the row instead of
// double-applying. One bad row never aborts the sweep.
func (s *SweeperService) RunExpirySweep(ctx context.Context) error {
	now := time.Now().UTC()

	expired, err := s.listingRepo.ListExpired(ctx, now)
	if err != nil {
		return err
	}
	for _, l := range expired {
		if _, err := s.listingRepo.ExpireAtomic(ctx, l.ID, l.RowVersion); err != nil {
			if isVersionConflict(err) {
				utils.Logger.Debugf("Sweep lost race on listing %s, skipping", l.ID)
				continue
			}
			utils.Logger.WithError(err).Errorf("Failed to expire listing %s", l.ID)
		}
	}

	cutoff := now.Add(-s.cfg.VerificationMaxAge)
	stale, err := s.vrRepo.ListOpenOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, vr := range stale {
		if _, err := s.vrRepo.ExpireAtomic(ctx, vr.ID, vr.RowVersion); err != nil {
			if isVersionConflict(err) {
				utils.Logger.Debugf("Sweep lost race on verification request %s, skipping", vr.ID)
				continue
			}
			utils.Logger.WithError(err).Errorf("Failed to expire verification request %s", vr.ID)
		}
	}

	if len(expired) > 0 || len(stale) > 0 {
		utils.Logger.Infof("Expiry sweep processed %d listings, %d verification requests", len(expired), len(stale))
	}
	return nil
}
