package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/transitions"
	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	GetByOnChainID(ctx context.Context, onChainID string) (*models.Property, error)
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error)

	// UpdateStatusAtomic applies a single guarded transition under a row lock.
	UpdateStatusAtomic(ctx context.Context, id uuid.UUID, newStatus models.PropertyStatusType, expectedVersion int64) (*models.Property, error)

	// OverrideStatusAtomic bypasses the transition table. Callers must write
	// an audit record in the same request; only the coordinator's
	// administrative override uses it.
	OverrideStatusAtomic(ctx context.Context, id uuid.UUID, newStatus models.PropertyStatusType, expectedVersion int64) (*models.Property, error)

	// SetTokenizedAtomic records the minted on-chain id and total shares
	// together with the VERIFIED -> TOKENIZED transition.
	SetTokenizedAtomic(ctx context.Context, id uuid.UUID, onChainID string, totalShares int64, expectedVersion int64) (*models.Property, error)

	// DeleteGuardedAtomic removes a property only when it is terminal or was
	// never activated, and no non-terminal listing or escrow references it.
	DeleteGuardedAtomic(ctx context.Context, id uuid.UUID) error
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type propertyRepo struct {
	db DB
}

func NewPropertyRepository(db DB) PropertyRepository {
	return &propertyRepo{db: db}
}

const uniqueViolationCode = "23505"

func baseSelectProperty() string {
	return `
        SELECT
            id, on_chain_id, owner_id, valuation,
            location_hash, document_hash, total_shares, status,
            created_at, updated_at, row_version
        FROM properties
    `
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID,
		&p.OnChainID,
		&p.OwnerID,
		&p.Valuation,
		&p.LocationHash,
		&p.DocumentHash,
		&p.TotalShares,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepo) Create(ctx context.Context, p *models.Property) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO properties (
            id, on_chain_id, owner_id, valuation,
            location_hash, document_hash, total_shares, status,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW(), NOW(), 1)
    `,
		p.ID,
		p.OnChainID,
		p.OwnerID,
		p.Valuation,
		p.LocationHash,
		p.DocumentHash,
		p.TotalShares,
		p.Status,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return utils.ErrDuplicateProperty
	}
	return err
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	row := r.db.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1", id)
	return scanProperty(row)
}

func (r *propertyRepo) GetByOnChainID(ctx context.Context, onChainID string) (*models.Property, error) {
	row := r.db.QueryRow(ctx, baseSelectProperty()+" WHERE on_chain_id=$1", onChainID)
	return scanProperty(row)
}

func (r *propertyRepo) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error) {
	rows, err := r.db.Query(ctx, baseSelectProperty()+" WHERE owner_id=$1 ORDER BY created_at", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *propertyRepo) UpdateStatusAtomic(
	ctx context.Context,
	id uuid.UUID,
	newStatus models.PropertyStatusType,
	expectedVersion int64,
) (*models.Property, error) {
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

	row := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", id)
	p, err := scanProperty(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pgx.ErrNoRows
	}
	if p.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return p, err
	}
	if err = transitions.CheckProperty(p.Status, newStatus); err != nil {
		return p, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE properties
        SET status=$1, row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, newStatus, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1", id)
	return scanProperty(newRow)
}

func (r *propertyRepo) OverrideStatusAtomic(
	ctx context.Context,
	id uuid.UUID,
	newStatus models.PropertyStatusType,
	expectedVersion int64,
) (*models.Property, error) {
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

	row := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", id)
	p, err := scanProperty(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pgx.ErrNoRows
	}
	if p.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return p, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE properties
        SET status=$1, row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, newStatus, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1", id)
	return scanProperty(newRow)
}

func (r *propertyRepo) SetTokenizedAtomic(
	ctx context.Context,
	id uuid.UUID,
	onChainID string,
	totalShares int64,
	expectedVersion int64,
) (*models.Property, error) {
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

	row := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", id)
	p, err := scanProperty(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pgx.ErrNoRows
	}
	if p.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return p, err
	}
	if err = transitions.CheckProperty(p.Status, models.PropertyStatusTokenized); err != nil {
		return p, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE properties
        SET status='TOKENIZED', on_chain_id=$1, total_shares=$2,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$3
    `, onChainID, totalShares, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1", id)
	return scanProperty(newRow)
}

func (r *propertyRepo) DeleteGuardedAtomic(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	row := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", id)
	p, err := scanProperty(row)
	if err != nil {
		return err
	}
	if p == nil {
		err = pgx.ErrNoRows
		return err
	}
	if !p.IsTerminal() && p.Status != models.PropertyStatusRegistered {
		err = utils.ErrWrongStatus
		return err
	}

	var openChildren int
	err = tx.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM listings
              WHERE property_id=$1 AND status='ACTIVE')
          + (SELECT COUNT(*) FROM escrows e
              JOIN listings l ON l.id = e.listing_id
             WHERE l.property_id=$1
               AND e.status NOT IN ('RELEASED','CANCELLED','RESOLVED'))
          + (SELECT COUNT(*) FROM verification_requests
              WHERE property_id=$1 AND status IN ('PENDING','IN_PROGRESS'))
    `, id).Scan(&openChildren)
	if err != nil {
		return err
	}
	if openChildren > 0 {
		err = utils.ErrHasActiveChildren
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM properties WHERE id=$1`, id)
	return err
}
