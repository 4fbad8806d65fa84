package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tablegate/tablegate/internal/model"
)

// AuditStore persists the append-only trail of attempted operations. It
// runs on its own pool (see NewAuditDB) so its durability is independent of
// the business transaction's outcome. The application only inserts and
// reads; retention is an operational concern handled outside the service.
type AuditStore struct {
	db *sqlx.DB
}

func NewAuditStore(db *sqlx.DB) (*AuditStore, error) {
	store := &AuditStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *AuditStore) Insert(ctx context.Context, rec *model.AuditRecord) error {
	if rec == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO audit_dynamic_crud (
			id, table_name, operation, actor, status, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`), rec.ID, rec.Table, rec.Operation, rec.Actor, rec.Status, rec.Detail, rec.CreatedAt)
	return err
}

// ListFilter narrows an audit trail read.
type ListFilter struct {
	Table  string
	Actor  string
	Status model.AuditStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

func (s *AuditStore) List(ctx context.Context, f ListFilter) ([]*model.AuditRecord, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, table_name, operation, actor, status, detail, created_at FROM audit_dynamic_crud`
	clauses := []string{}
	args := []interface{}{}

	if f.Table != "" {
		clauses = append(clauses, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, *f.To)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.AuditRecord, 0, limit)
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountByStatus summarizes the trail for monitoring endpoints.
func (s *AuditStore) CountByStatus(ctx context.Context) (map[model.AuditStatus]int64, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS n FROM audit_dynamic_crud GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.AuditStatus]int64, 3)
	for rows.Next() {
		var status model.AuditStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *AuditStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_dynamic_crud (
			id TEXT PRIMARY KEY,
			table_name TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_crud_table ON audit_dynamic_crud(table_name, created_at)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_crud_status ON audit_dynamic_crud(status)`)
	return nil
}
