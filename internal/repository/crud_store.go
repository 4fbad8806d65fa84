package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tablegate/tablegate/internal/sqlbuilder"
)

// CrudStore executes builder statements against the primary pool. It is the
// only place dynamic statements touch the storage engine; every mutation
// runs in a transaction scoped to that single data change.
type CrudStore struct {
	db *sqlx.DB
}

func NewCrudStore(db *sqlx.DB) *CrudStore {
	return &CrudStore{db: db}
}

// Select runs a LIST/READ statement and returns generic rows.
func (s *CrudStore) Select(ctx context.Context, stmt *sqlbuilder.Statement) ([]map[string]any, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		normalizeRow(row)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Count runs a COUNT statement built for a LIST's filters.
func (s *CrudStore) Count(ctx context.Context, stmt *sqlbuilder.Statement) (int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, s.db.Rebind(stmt.SQL), stmt.Args...); err != nil {
		return 0, err
	}
	return total, nil
}

// InsertReturning runs a CREATE statement and returns the assigned key.
func (s *CrudStore) InsertReturning(ctx context.Context, stmt *sqlbuilder.Statement) (any, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var key any
	if err := tx.QueryRowxContext(ctx, s.db.Rebind(stmt.SQL), stmt.Args...).Scan(&key); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return normalizeValue(key), nil
}

// Exec runs an UPDATE/DELETE statement and returns the affected row count.
func (s *CrudStore) Exec(ctx context.Context, stmt *sqlbuilder.Statement) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, s.db.Rebind(stmt.SQL), stmt.Args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

// EnsureTable creates a business table from trusted DDL. Only the catalog
// bootstrap path uses this; request input never reaches it.
func (s *CrudStore) EnsureTable(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure table: %w", err)
	}
	return nil
}

func normalizeRow(row map[string]any) {
	for k, v := range row {
		row[k] = normalizeValue(v)
	}
}

// normalizeValue flattens driver-specific scan types so results serialize
// predictably.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}
