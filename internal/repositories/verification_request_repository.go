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

type VerificationRequestRepository interface {
	Create(ctx context.Context, vr *models.VerificationRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error)
	GetOpenByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.VerificationRequest, error)
	ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.VerificationRequest, error)

	// ResolveAtomic approves or rejects the request; on approval the owning
	// property moves REGISTERED -> VERIFIED in the same transaction.
	ResolveAtomic(ctx context.Context, id uuid.UUID, approved bool, verifierID uuid.UUID, resultHash *string, expectedVersion int64) (*models.VerificationRequest, error)

	MarkInProgressAtomic(ctx context.Context, id uuid.UUID, verifierID uuid.UUID, expectedVersion int64) (*models.VerificationRequest, error)

	ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VerificationRequest, error)
	ExpireAtomic(ctx context.Context, id uuid.UUID, expectedVersion int64) (*models.VerificationRequest, error)
}

type verificationRequestRepo struct {
	db DB
}

func NewVerificationRequestRepository(db DB) VerificationRequestRepository {
	return &verificationRequestRepo{db: db}
}

func baseSelectVerification() string {
	return `
        SELECT
            id, property_id, requester_id, document_hash, status,
            verifier_id, result_hash,
            created_at, updated_at, row_version
        FROM verification_requests
    `
}

func scanVerification(row pgx.Row) (*models.VerificationRequest, error) {
	var vr models.VerificationRequest
	err := row.Scan(
		&vr.ID,
		&vr.PropertyID,
		&vr.RequesterID,
		&vr.DocumentHash,
		&vr.Status,
		&vr.VerifierID,
		&vr.ResultHash,
		&vr.CreatedAt,
		&vr.UpdatedAt,
		&vr.RowVersion,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &vr, nil
}

func (r *verificationRequestRepo) Create(ctx context.Context, vr *models.VerificationRequest) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO verification_requests (
            id, property_id, requester_id, document_hash, status,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5, NOW(), NOW(), 1)
    `,
		vr.ID,
		vr.PropertyID,
		vr.RequesterID,
		vr.DocumentHash,
		vr.Status,
	)
	return err
}

func (r *verificationRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VerificationRequest, error) {
	row := r.db.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1", id)
	return scanVerification(row)
}

func (r *verificationRequestRepo) GetOpenByPropertyID(ctx context.Context, propertyID uuid.UUID) (*models.VerificationRequest, error) {
	row := r.db.QueryRow(ctx, baseSelectVerification()+`
        WHERE property_id=$1 AND status IN ('PENDING','IN_PROGRESS')
        ORDER BY created_at DESC
        LIMIT 1
    `, propertyID)
	return scanVerification(row)
}

func (r *verificationRequestRepo) ListByPropertyID(ctx context.Context, propertyID uuid.UUID) ([]*models.VerificationRequest, error) {
	rows, err := r.db.Query(ctx, baseSelectVerification()+" WHERE property_id=$1 ORDER BY created_at DESC", propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.VerificationRequest
	for rows.Next() {
		vr, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vr)
	}
	return out, rows.Err()
}

func (r *verificationRequestRepo) ResolveAtomic(
	ctx context.Context,
	id uuid.UUID,
	approved bool,
	verifierID uuid.UUID,
	resultHash *string,
	expectedVersion int64,
) (*models.VerificationRequest, error) {
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

	row := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1 FOR UPDATE", id)
	vr, err := scanVerification(row)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		return nil, pgx.ErrNoRows
	}
	if vr.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return vr, err
	}

	target := models.VerificationStatusRejected
	if approved {
		target = models.VerificationStatusApproved
	}
	if err = transitions.CheckVerification(vr.Status, target); err != nil {
		return vr, err
	}

	if approved {
		// Lock the property after the request; lock order is fixed across the
		// codebase so concurrent resolvers cannot deadlock.
		propRow := tx.QueryRow(ctx, baseSelectProperty()+" WHERE id=$1 FOR UPDATE", vr.PropertyID)
		var prop *models.Property
		prop, err = scanProperty(propRow)
		if err != nil {
			return nil, err
		}
		if prop == nil {
			return nil, pgx.ErrNoRows
		}
		if err = transitions.CheckProperty(prop.Status, models.PropertyStatusVerified); err != nil {
			return vr, err
		}
		_, err = tx.Exec(ctx, `
            UPDATE properties
            SET status='VERIFIED', row_version=row_version+1, updated_at=NOW()
            WHERE id=$1
        `, vr.PropertyID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
        UPDATE verification_requests
        SET status=$1, verifier_id=$2, result_hash=$3,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$4
    `, target, verifierID, resultHash, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1", id)
	return scanVerification(newRow)
}

func (r *verificationRequestRepo) MarkInProgressAtomic(
	ctx context.Context,
	id uuid.UUID,
	verifierID uuid.UUID,
	expectedVersion int64,
) (*models.VerificationRequest, error) {
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

	row := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1 FOR UPDATE", id)
	vr, err := scanVerification(row)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		return nil, pgx.ErrNoRows
	}
	if vr.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return vr, err
	}
	if err = transitions.CheckVerification(vr.Status, models.VerificationStatusInProgress); err != nil {
		return vr, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE verification_requests
        SET status='IN_PROGRESS', verifier_id=$1,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$2
    `, verifierID, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1", id)
	return scanVerification(newRow)
}

func (r *verificationRequestRepo) ListOpenOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VerificationRequest, error) {
	rows, err := r.db.Query(ctx, baseSelectVerification()+`
        WHERE status IN ('PENDING','IN_PROGRESS') AND created_at <= $1
        ORDER BY created_at
    `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.VerificationRequest
	for rows.Next() {
		vr, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vr)
	}
	return out, rows.Err()
}

func (r *verificationRequestRepo) ExpireAtomic(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int64,
) (*models.VerificationRequest, error) {
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

	row := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1 FOR UPDATE", id)
	vr, err := scanVerification(row)
	if err != nil {
		return nil, err
	}
	if vr == nil {
		return nil, pgx.ErrNoRows
	}
	if vr.RowVersion != expectedVersion {
		err = utils.ErrRowVersionConflict
		return vr, err
	}
	if err = transitions.CheckVerification(vr.Status, models.VerificationStatusExpired); err != nil {
		return vr, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE verification_requests
        SET status='EXPIRED', row_version=row_version+1, updated_at=NOW()
        WHERE id=$1
    `, id)
	if err != nil {
		return nil, err
	}
	newRow := tx.QueryRow(ctx, baseSelectVerification()+" WHERE id=$1", id)
	return scanVerification(newRow)
}
