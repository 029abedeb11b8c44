package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/transitions"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type BidRepository interface {
	// CreateWithListingAtomic inserts a PENDING bid under the listing row
	// lock, re-checking that the listing is still ACTIVE and unexpired. A
	// bid racing AcceptAtomic or the sweeper queues behind the lock and
	// fails the re-check instead of landing as a dangling PENDING row.
	CreateWithListingAtomic(ctx context.Context, b *models.Bid) (*models.Bid, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	ListByListingID(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error)
	GetAcceptedByListingID(ctx context.Context, listingID uuid.UUID) (*models.Bid, error)

	// AcceptAtomic is the single most load-bearing write in the system.
	// In one transaction: the listing row is locked first (fixed lock order,
	// listing before bids), the bid goes PENDING -> ACCEPTED, every sibling
	// PENDING bid goes to REJECTED, and the listing goes ACTIVE -> SOLD.
	// Concurrent accepts on the same listing serialize on the listing lock;
	// the loser fails its version or status check and nothing is applied.
	AcceptAtomic(ctx context.Context, bidID uuid.UUID, expectedBidVersion, expectedListingVersion int64) (*models.Bid, error)

	// UpdateStatusAtomic applies a guarded single-bid transition
	// (reject, withdraw).
	UpdateStatusAtomic(ctx context.Context, bidID uuid.UUID, newStatus models.BidStatusType, expectedVersion int64) (*models.Bid, error)
}

type bidRepo struct {
	db DB
}

func NewBidRepository(db DB) BidRepository {
	return &bidRepo{db: db}
}

func baseSelectBid() string {
	return `
        SELECT
            id, listing_id, bidder_id, amount, message, status,
            created_at, updated_at, row_version
        FROM bids
    `
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(
		&b.ID,
		&b.ListingID,
		&b.BidderID,
		&b.Amount,
		&b.Message,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *bidRepo) CreateWithListingAtomic(ctx context.Context, b *models.Bid) (*models.Bid, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	listRow := tx.QueryRow(ctx, baseSelectListing()+" WHERE id=$1 FOR UPDATE", b.ListingID)
	l, err := scanListing(listRow)
	if err != nil {
		return nil, err
	}
	if l == nil {
		err = pgx.ErrNoRows
		return nil, err
	}
	if l.Status != models.ListingStatusActive {
		err = utils.ErrWrongStatus
		return nil, err
	}
	if l.IsExpired(time.Now()) {
		err = utils.ErrListingExpired
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO bids (
            id, listing_id, bidder_id, amount, message, status,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6, NOW(), NOW(), 1)
    `,
		b.ID,
		b.ListingID,
		b.BidderID,
		b.Amount,
		b.Message,
		b.Status,
	)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", b.ID)
	return scanBid(newRow)
}

func (r *bidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	row := r.db.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", id)
	return scanBid(row)
}

func (r *bidRepo) ListByListingID(ctx context.Context, listingID uuid.UUID) ([]*models.Bid, error) {
	rows, err := r.db.Query(ctx, baseSelectBid()+" WHERE listing_id=$1 ORDER BY created_at", listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *bidRepo) GetAcceptedByListingID(ctx context.Context, listingID uuid.UUID) (*models.Bid, error) {
	row := r.db.QueryRow(ctx, baseSelectBid()+" WHERE listing_id=$1 AND status='ACCEPTED'", listingID)
	return scanBid(row)
}

func (r *bidRepo) AcceptAtomic(
	ctx context.Context,
	bidID uuid.UUID,
	expectedBidVersion, expectedListingVersion int64,
) (*models.Bid, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	// Listing lock first. A racing ExpireAtomic or second AcceptAtomic
	// queues behind it and then fails the status/version re-check.
	bidRow := tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", bidID)
	b, err := scanBid(bidRow)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, pgx.ErrNoRows
	}

	listRow := tx.QueryRow(ctx, baseSelectListing()+" WHERE id=$1 FOR UPDATE", b.ListingID)
	l, err := scanListing(listRow)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, pgx.ErrNoRows
	}
	if l.RowVersion != expectedListingVersion {
		err = utils.ErrRowVersionConflict
		return b, err
	}
	if err = transitions.CheckListing(l.Status, models.ListingStatusSold); err != nil {
		return b, err
	}

	// Re-read the bid under lock now that the listing is held.
	bidRow = tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1 FOR UPDATE", bidID)
	b, err = scanBid(bidRow)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, pgx.ErrNoRows
	}
	if b.RowVersion != expectedBidVersion {
		err = utils.ErrRowVersionConflict
		return b, err
	}
	if err = transitions.CheckBid(b.Status, models.BidStatusAccepted); err != nil {
		return b, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE bids
        SET status='ACCEPTED', row_version=row_version+1, updated_at=NOW()
        WHERE id=$1
    `, bidID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE bids
        SET status='REJECTED', row_version=row_version+1, updated_at=NOW()
        WHERE listing_id=$1 AND id<>$2 AND status='PENDING'
    `, b.ListingID, bidID)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE listings
        SET status='SOLD', row_version=row_version+1, updated_at=NOW()
        WHERE id=$1
    `, b.ListingID)
	if err != nil {
		return nil, err
	}

	newRow := tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", bidID)
	return scanBid(newRow)
}

func (r *bidRepo) UpdateStatusAtomic(
	ctx context.Context,
	bidID uuid.UUID,
	newStatus models.BidStatusType,
	expectedVersion int64,
) (*models.Bid, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	row := tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1 FOR UPDATE", bidID)
	b, err := scanBid(row)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, pgx.ErrNoRows
	}
	if b.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return b, err
	}
	if err = transitions.CheckBid(b.Status, newStatus); err != nil {
		return b, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE bids
        SET status=$1, row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, newStatus, bidID)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", bidID)
	return scanBid(newRow)
}
