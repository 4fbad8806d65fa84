package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/model"
)

func newAuditStore(t *testing.T) *AuditStore {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "audit.db")

	db, err := NewAuditDB(cfg)
	if err != nil {
		t.Fatalf("open audit db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewAuditStore(db)
	if err != nil {
		t.Fatalf("audit schema: %v", err)
	}
	return store
}

func insertRecord(t *testing.T, store *AuditStore, table, actor string, status model.AuditStatus, at time.Time) {
	t.Helper()
	err := store.Insert(context.Background(), &model.AuditRecord{
		ID:        uuid.New().String(),
		Table:     table,
		Operation: model.OpCreate,
		Actor:     actor,
		Status:    status,
		Detail:    "rows=1",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestAuditStoreListFilters(t *testing.T) {
	store := newAuditStore(t)
	now := time.Now().UTC()

	insertRecord(t, store, "widgets", "alice", model.StatusSuccess, now.Add(-2*time.Hour))
	insertRecord(t, store, "widgets", "bob", model.StatusFailure, now.Add(-time.Hour))
	insertRecord(t, store, "customers", "alice", model.StatusDenied, now)

	ctx := context.Background()

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	// Newest first.
	if all[0].Table != "customers" {
		t.Fatalf("expected newest record first, got %s", all[0].Table)
	}

	byTable, err := store.List(ctx, ListFilter{Table: "widgets"})
	if err != nil || len(byTable) != 2 {
		t.Fatalf("table filter: %v, %d records", err, len(byTable))
	}

	byActor, err := store.List(ctx, ListFilter{Actor: "alice"})
	if err != nil || len(byActor) != 2 {
		t.Fatalf("actor filter: %v, %d records", err, len(byActor))
	}

	byStatus, err := store.List(ctx, ListFilter{Status: model.StatusFailure})
	if err != nil || len(byStatus) != 1 || byStatus[0].Actor != "bob" {
		t.Fatalf("status filter: %v, %+v", err, byStatus)
	}

	from := now.Add(-90 * time.Minute)
	windowed, err := store.List(ctx, ListFilter{From: &from})
	if err != nil || len(windowed) != 2 {
		t.Fatalf("from filter: %v, %d records", err, len(windowed))
	}

	limited, err := store.List(ctx, ListFilter{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %v, %d records", err, len(limited))
	}
}

func TestAuditStoreCountByStatus(t *testing.T) {
	store := newAuditStore(t)
	now := time.Now().UTC()

	insertRecord(t, store, "widgets", "alice", model.StatusSuccess, now)
	insertRecord(t, store, "widgets", "alice", model.StatusSuccess, now)
	insertRecord(t, store, "widgets", "bob", model.StatusDenied, now)

	counts, err := store.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.StatusSuccess] != 2 || counts[model.StatusDenied] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}
