package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/transitions"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

type EscrowRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetNonTerminalByListingID(ctx context.Context, listingID uuid.UUID) (*models.Escrow, error)

	// CreateDepositedIfAbsent inserts the escrow in DEPOSITED unless a
	// non-terminal escrow already exists for the listing; in that case the
	// existing row comes back with created=false. A partial unique index on
	// listing_id over non-terminal statuses backs the invariant, so a
	// concurrent double-deposit can never produce two rows.
	CreateDepositedIfAbsent(ctx context.Context, e *models.Escrow) (escrow *models.Escrow, created bool, err error)

	// ReleaseAtomic moves DEPOSITED -> RELEASED and, through the listing,
	// reassigns the property to the buyer and marks it SOLD.
	ReleaseAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.Escrow, error)

	FileDisputeAtomic(ctx context.Context, id uuid.UUID, reason string, expectedVersion int64) (*models.Escrow, error)

	// ResolveAtomic closes a DISPUTED escrow and writes the audit record in
	// the same transaction. releaseToSeller=true finalizes the sale;
	// otherwise the property reverts to TOKENIZED for relisting.
	ResolveAtomic(ctx context.Context, id uuid.UUID, releaseToSeller bool, audit *models.AuditLog, expectedVersion int64) (*models.Escrow, error)
}

type escrowRepo struct {
	db DB
}

func NewEscrowRepository(db DB) EscrowRepository {
	return &escrowRepo{db: db}
}

func baseSelectEscrow() string {
	return `
        SELECT
            id, listing_id, buyer_id, seller_id, amount, status,
            dispute_reason, created_at, updated_at, released_at, row_version
        FROM escrows
    `
}

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(
		&e.ID,
		&e.ListingID,
		&e.BuyerID,
		&e.SellerID,
		&e.Amount,
		&e.Status,
		&e.DisputeReason,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.ReleasedAt,
		&e.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *escrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	row := r.db.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1", id)
	return scanEscrow(row)
}

func (r *escrowRepo) GetNonTerminalByListingID(ctx context.Context, listingID uuid.UUID) (*models.Escrow, error) {
	row := r.db.QueryRow(ctx, baseSelectEscrow()+`
        WHERE listing_id=$1 AND status NOT IN ('RELEASED','CANCELLED','RESOLVED')
    `, listingID)
	return scanEscrow(row)
}

func (r *escrowRepo) CreateDepositedIfAbsent(ctx context.Context, e *models.Escrow) (*models.Escrow, bool, error) {
	tag, err := r.db.Exec(ctx, `
        INSERT INTO escrows (
            id, listing_id, buyer_id, seller_id, amount, status,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,'DEPOSITED', NOW(), NOW(), 1)
        ON CONFLICT (listing_id) WHERE status NOT IN ('RELEASED','CANCELLED','RESOLVED')
        DO NOTHING
    `,
		e.ID,
		e.ListingID,
		e.BuyerID,
		e.SellerID,
		e.Amount,
	)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 1 {
		created, err := r.GetByID(ctx, e.ID)
		return created, true, err
	}
	existing, err := r.GetNonTerminalByListingID(ctx, e.ListingID)
	return existing, false, err
}

func (r *escrowRepo) ReleaseAtomic(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
) (*models.Escrow, error) {
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

	row := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1 FOR UPDATE", id)
	e, err := scanEscrow(row)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, pgx.ErrNoRows
	}
	if e.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return e, err
	}
	if err = transitions.CheckEscrow(e.Status, models.EscrowStatusReleased); err != nil {
		return e, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE escrows
        SET status='RELEASED', released_at=NOW(),
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$1
    `, id)
	if err != nil {
		return nil, err
	}

	// Ownership transfers to the buyer and the property closes out.
	_, err = tx.Exec(ctx, `
        UPDATE properties
        SET owner_id=$1, status='SOLD',
            row_version=row_version+1, updated_at=NOW()
        WHERE id=(SELECT property_id FROM listings WHERE id=$2)
          AND status='LISTED'
    `, e.BuyerID, e.ListingID)
	if err != nil {
		return nil, err
	}

	newRow := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1", id)
	return scanEscrow(newRow)
}

func (r *escrowRepo) FileDisputeAtomic(
	ctx context.Context,
	id uuid.UUID,
	reason string,
	expectedVersion int64,
) (*models.Escrow, error) {
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

	row := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1 FOR UPDATE", id)
	e, err := scanEscrow(row)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, pgx.ErrNoRows
	}
	if e.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return e, err
	}
	if err = transitions.CheckEscrow(e.Status, models.EscrowStatusDisputed); err != nil {
		return e, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE escrows
        SET status='DISPUTED', dispute_reason=$1,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, reason, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1", id)
	return scanEscrow(newRow)
}

func (r *escrowRepo) ResolveAtomic(
	ctx context.Context,
	id uuid.UUID,
	releaseToSeller bool,
	audit *models.AuditLog,
	expectedVersion int64,
) (*models.Escrow, error) {
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

	row := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1 FOR UPDATE", id)
	e, err := scanEscrow(row)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, pgx.ErrNoRows
	}
	if e.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return e, err
	}
	if err = transitions.CheckEscrow(e.Status, models.EscrowStatusResolved); err != nil {
		return e, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE escrows
        SET status='RESOLVED', released_at=NOW(),
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$1
    `, id)
	if err != nil {
		return nil, err
	}

	if releaseToSeller {
		// The sale stands: buyer takes ownership.
		_, err = tx.Exec(ctx, `
            UPDATE properties
            SET owner_id=$1, status='SOLD',
                row_version=row_version+1, updated_at=NOW()
            WHERE id=(SELECT property_id FROM listings WHERE id=$2)
              AND status='LISTED'
        `, e.BuyerID, e.ListingID)
	} else {
		// Refund: property becomes relistable, the SOLD listing stays as the
		// record of the failed sale.
		_, err = tx.Exec(ctx, `
            UPDATE properties
            SET status='TOKENIZED', row_version=row_version+1, updated_at=NOW()
            WHERE id=(SELECT property_id FROM listings WHERE id=$1)
              AND status='LISTED'
        `, e.ListingID)
	}
	if err != nil {
		return nil, err
	}

	if audit != nil {
		_, err = tx.Exec(ctx, `
            INSERT INTO audit_logs (
                id, actor_id, action, target_id, target_type,
                justification, details, created_at
            ) VALUES ($1,$2,$3,$4,$5,$6,$7, NOW())
        `,
			audit.ID,
			audit.ActorID,
			audit.Action,
			audit.TargetID,
			audit.TargetType,
			audit.Justification,
			audit.Details,
		)
		if err != nil {
			return nil, err
		}
	}

	newRow := tx.QueryRow(ctx, baseSelectEscrow()+" WHERE id=$1", id)
	return scanEscrow(newRow)
}
