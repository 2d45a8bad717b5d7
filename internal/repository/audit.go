package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"service-sla-guard/internal/apperr"
	"service-sla-guard/internal/domain"
)

// AuditRepo stores reassignment audit records.
type AuditRepo struct{ db *pgxpool.Pool }

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *pgxpool.Pool) *AuditRepo { return &AuditRepo{db: db} }

// RecordAudit writes rec once; a repeated id is ignored so retries are safe.
func (r *AuditRepo) RecordAudit(ctx context.Context, rec domain.ReassignmentRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO reassignment_audit (id, order_id, payload, recorded_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO NOTHING
    `, rec.ID, rec.OrderID, payload, rec.Timestamp)
	if err != nil {
		return apperr.Persistence("record audit "+rec.OrderID, err)
	}
	return nil
}

// ListAudit returns the audit records of an order, oldest first.
func (r *AuditRepo) ListAudit(ctx context.Context, orderID string) ([]domain.ReassignmentRecord, error) {
	rows, err := r.db.Query(ctx, `
        SELECT payload FROM reassignment_audit WHERE order_id = $1 ORDER BY recorded_at, id
    `, orderID)
	if err != nil {
		return nil, apperr.Persistence("list audit "+orderID, err)
	}
	defer rows.Close()

	out := make([]domain.ReassignmentRecord, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apperr.Persistence("scan audit", err)
		}
		var rec domain.ReassignmentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list audit "+orderID, err)
	}
	return out, nil
}
