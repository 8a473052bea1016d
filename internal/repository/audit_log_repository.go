package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/traincenter/traincenter-backend/internal/model"
)

// AuditLogRepository appends business events to the operation log.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository.
func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// Record appends one audit entry. Callers treat failures as non-fatal.
func (r *AuditLogRepository) Record(ctx context.Context, entry *model.AuditLog) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO audit_log (user_id, org_id, action, detail)
		 VALUES ($1, $2, $3, $4)
		 RETURNING log_id`,
		entry.UserID, entry.OrgID, entry.Action, entry.Detail,
	).Scan(&entry.ID)
}
