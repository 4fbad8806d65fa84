package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/repository"
)

// flakyStore fails inserts on demand while keeping what it accepted.
type flakyStore struct {
	fail    bool
	records []*model.AuditRecord
}

func (s *flakyStore) Insert(_ context.Context, rec *model.AuditRecord) error {
	if s.fail {
		return errors.New("store down")
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *flakyStore) List(_ context.Context, f repository.ListFilter) ([]*model.AuditRecord, error) {
	if s.fail {
		return nil, errors.New("store down")
	}
	return s.records, nil
}

func TestRecordFailOpenByDefault(t *testing.T) {
	store := &flakyStore{fail: true}
	svc, err := NewAuditService(t.TempDir(), store, time.Second, false)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	defer svc.Close()

	rec := &model.AuditRecord{Table: "widgets", Operation: model.OpCreate, Actor: "alice", Status: model.StatusSuccess}
	if err := svc.Record(context.Background(), rec); err != nil {
		t.Fatalf("fail-open policy must not surface the write failure, got %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("record must be stamped: %+v", rec)
	}
}

func TestRecordFailClosedSurfacesError(t *testing.T) {
	store := &flakyStore{fail: true}
	svc, err := NewAuditService(t.TempDir(), store, time.Second, true)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	defer svc.Close()

	rec := &model.AuditRecord{Table: "widgets", Operation: model.OpCreate, Actor: "alice", Status: model.StatusSuccess}
	if err := svc.Record(context.Background(), rec); err == nil {
		t.Fatalf("fail-closed policy must surface the write failure")
	}
}

func TestListFallsBackToRingBuffer(t *testing.T) {
	store := &flakyStore{}
	svc, err := NewAuditService(t.TempDir(), store, time.Second, false)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()
	for _, table := range []string{"widgets", "customers", "widgets"} {
		rec := &model.AuditRecord{Table: table, Operation: model.OpList, Actor: "alice", Status: model.StatusSuccess}
		if err := svc.Record(ctx, rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	store.fail = true
	records, err := svc.List(ctx, repository.ListFilter{Table: "widgets"})
	if err != nil {
		t.Fatalf("list with dead store must fall back, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 ring records for widgets, got %d", len(records))
	}
}

func TestMirrorFileAndSinks(t *testing.T) {
	dir := t.TempDir()
	store := &flakyStore{}
	svc, err := NewAuditService(dir, store, time.Second, false)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}

	var sunk []*model.AuditRecord
	svc.AddSink(func(rec *model.AuditRecord) {
		sunk = append(sunk, rec)
	})

	rec := &model.AuditRecord{Table: "widgets", Operation: model.OpDelete, Actor: "alice", Status: model.StatusSuccess, Detail: "rows=1"}
	if err := svc.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	svc.Close() // drains the mirror worker

	if len(sunk) != 1 || sunk[0].ID != rec.ID {
		t.Fatalf("sink not invoked: %+v", sunk)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one mirror file, got %v (%v)", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("mirror file empty")
	}
	var mirrored model.AuditRecord
	if err := json.Unmarshal(scanner.Bytes(), &mirrored); err != nil {
		t.Fatalf("mirror line not json: %v", err)
	}
	if mirrored.ID != rec.ID || mirrored.Detail != "rows=1" {
		t.Fatalf("mirror mismatch: %+v", mirrored)
	}
}

func TestRecordTruncatesOversizedDetail(t *testing.T) {
	store := &flakyStore{}
	svc, err := NewAuditService(t.TempDir(), store, time.Second, false)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}
	defer svc.Close()

	rec := &model.AuditRecord{
		Table:     "widgets",
		Operation: model.OpCreate,
		Actor:     "alice",
		Status:    model.StatusFailure,
		Detail:    strings.Repeat("x", model.MaxAuditDetail*2),
	}
	if err := svc.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(rec.Detail) > model.MaxAuditDetail {
		t.Fatalf("detail not truncated: %d bytes", len(rec.Detail))
	}
}
