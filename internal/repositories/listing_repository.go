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

type ListingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetActiveByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.Listing, error)
	ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.Listing, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Listing, error)

	// CreateWithPropertyAtomic inserts an ACTIVE listing and moves the
	// property to LISTED in one transaction. The active-listing uniqueness
	// check runs under the property row lock, so two concurrent creators
	// serialize and the second observes the first's listing.
	CreateWithPropertyAtomic(ctx context.Context, l *models.Listing, expectedPropVersion int64) (*models.Listing, error)

	// CancelAtomic moves ACTIVE -> CANCELLED and reverts the property to
	// TOKENIZED so it can be relisted.
	CancelAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Listing, error)

	// ExpireAtomic moves ACTIVE -> EXPIRED, cascades every PENDING bid on the
	// listing to EXPIRED, and reverts the property to TOKENIZED. The sweeper
	// is its only caller but it applies the same transition rules as
	// interactive operations.
	ExpireAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Listing, error)
}

type listingRepo struct {
	db DB
}

func NewListingRepository(db DB) ListingRepository {
	return &listingRepo{db: db}
}

func baseSelectListing() string {
	return `
        SELECT
            id, property_id, seller_id, price, status, expires_at,
            created_at, updated_at, row_version
        FROM listings
    `
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID,
		&l.PropertyID,
		&l.SellerID,
		&l.Price,
		&l.Status,
		&l.ExpiresAt,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (r *listingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := r.db.QueryRow(ctx, baseSelectListing()+" WHERE id=$1", id)
	return scanListing(row)
}

func (r *listingRepo) GetActiveByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.Listing, error) {
	row := r.db.QueryRow(ctx, baseSelectListing()+" WHERE property_id=$1 AND status='ACTIVE'", propertyID)
	return scanListing(row)
}

func (r *listingRepo) ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.Listing, error) {
	rows, err := r.db.Query(ctx, baseSelectListing()+" WHERE property_id=$1 ORDER BY created_at DESC", propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *listingRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.Listing, error) {
	rows, err := r.db.Query(ctx, baseSelectListing()+`
        WHERE status='ACTIVE' AND expires_at <= $1
        ORDER BY expires_at
    `, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *listingRepo) CreateWithPropertyAtomic(
	ctx context.Context,
	l *models.Listing,
	expectedPropVersion int64,
) (*models.Listing, error) {
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

	propRow := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", l.PropertyID)
	prop, err := scanProperty(propRow)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, pgx.ErrNoRows
	}
	if prop.RowVersion != expectedPropVersion {
		err = utils.ErrRowVersionConflict
		return nil, err
	}

	var active int
	err = tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM listings WHERE property_id=$1 AND status='ACTIVE'
    `, l.PropertyID).Scan(&active)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		err = utils.ErrListingConflict
		return nil, err
	}

	if prop.Status != models.PropertyStatusListed {
		if err = transitions.CheckProperty(prop.Status, models.PropertyStatusListed); err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
            UPDATE properties
            SET status='LISTED', row_version=row_version+1, updated_at=NOW()
            WHERE id=$1
        `, l.PropertyID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO listings (
            id, property_id, seller_id, price, status, expires_at,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,'ACTIVE',$5, NOW(), NOW(), 1)
    `,
		l.ID,
		l.PropertyID,
		l.SellerID,
		l.Price,
		l.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	newRow := tx.QueryRow(ctx, baseSelectListing()+" WHERE id=$1", l.ID)
	return scanListing(newRow)
}

func (r *listingRepo) CancelAtomic(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
) (*models.Listing, error) {
	return r.closeListing(ctx, id, expectedVersion, models.ListingStatusCancelled, false)
}

func (r *listingRepo) ExpireAtomic(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
) (*models.Listing, error) {
	return r.closeListing(ctx, id, expectedVersion, models.ListingStatusExpired, true)
}

// closeListing takes a listing out of ACTIVE, reverting the property to
// TOKENIZED and, for expiry, cascading PENDING bids to EXPIRED.
func (r *listingRepo) closeListing(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
	target models.ListingStatusType,
	cascadeBids bool,
) (*models.Listing, error) {
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

	row := tx.QueryRow(ctx, baseSelectListing()+" WHERE id=$1 FOR UPDATE", id)
	l, err := scanListing(row)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, pgx.ErrNoRows
	}
	if l.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return l, err
	}
	if err = transitions.CheckListing(l.Status, target); err != nil {
		return l, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE listings
        SET status=$1, row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, target, id)
	if err != nil {
		return nil, err
	}

	if cascadeBids {
		_, err = tx.Exec(ctx, `
            UPDATE bids
            SET status='EXPIRED', row_version=row_version+1, updated_at=NOW()
            WHERE listing_id=$1 AND status='PENDING'
        `, id)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
        UPDATE properties
        SET status='TOKENIZED', row_version=row_version+1, updated_at=NOW()
        WHERE id=$1 AND status='LISTED'
    `, l.PropertyID)
	if err != nil {
		return nil, err
	}

	newRow := tx.QueryRow(ctx, baseSelectListing()+" WHERE id=$1", id)
	return scanListing(newRow)
}
