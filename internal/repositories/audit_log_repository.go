package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/models"
)

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByTargetID(ctx context.Context, targetID uuid.UUID) ([]models.AuditLog, error)
}

type auditLogRepo struct {
	db DB
}

func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO audit_logs (
            id, actor_id, action, target_id, target_type,
            justification, details, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7, NOW())
    `,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.TargetID,
		entry.TargetType,
		entry.Justification,
		entry.Details,
	)
	return err
}

func (r *auditLogRepo) ListByTargetID(ctx context.Context, targetID uuid.UUID) ([]models.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, actor_id, action, target_id, target_type,
               justification, details, created_at
        FROM audit_logs
        WHERE target_id=$1
        ORDER BY created_at DESC
    `, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		if err := rows.Scan(
			&a.ID,
			&a.ActorID,
			&a.Action,
			&a.TargetID,
			&a.TargetType,
			&a.Justification,
			&a.Details,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}
