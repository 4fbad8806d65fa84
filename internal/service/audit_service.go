package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/logger"
	"github.com/tablegate/tablegate/internal/pkg/metrics"
	"github.com/tablegate/tablegate/internal/repository"
)

// AuditStore is the durable backend for audit records.
type AuditStore interface {
	Insert(ctx context.Context, rec *model.AuditRecord) error
	List(ctx context.Context, f repository.ListFilter) ([]*model.AuditRecord, error)
}

// AuditSink receives a copy of every recorded entry, e.g. the websocket hub
// or the Redis mirror. Sinks run on the background worker and must not
// block for long.
type AuditSink func(*model.AuditRecord)

// AuditService is the audit recorder. The durable write goes through its
// own store (own connection pool) inside a bounded timeout, detached from
// the caller's cancellation, so a rolled-back business transaction still
// leaves its audit record behind. A failed or late write is escalated via
// log and metric; whether it also fails the primary operation is the
// FailClosed policy knob.
type AuditService struct {
	store      AuditStore
	timeout    time.Duration
	failClosed bool

	logChan chan *model.AuditRecord
	logFile *os.File
	buffer  *auditBuffer
	sinks   []AuditSink
	wg      sync.WaitGroup
}

func NewAuditService(logDir string, store AuditStore, timeout time.Duration, failClosed bool) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	// Daily JSONL mirror alongside the durable store.
	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	svc := &AuditService{
		store:      store,
		timeout:    timeout,
		failClosed: failClosed,
		logChan:    make(chan *model.AuditRecord, 1000),
		logFile:    f,
		buffer:     newAuditBuffer(1000),
	}

	svc.wg.Add(1)
	go svc.processMirror()

	return svc, nil
}

// AddSink registers an extra consumer. Call before traffic starts.
func (s *AuditService) AddSink(sink AuditSink) {
	s.sinks = append(s.sinks, sink)
}

// Record persists one audit entry. It returns an error only under the
// fail-closed policy; with the default fail-open policy a write failure is
// escalated to logs and metrics and the caller proceeds.
func (s *AuditService) Record(ctx context.Context, rec *model.AuditRecord) error {
	if rec == nil {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Truncate()

	s.buffer.Add(rec)

	// The write must survive the caller giving up, so it detaches from the
	// request's cancellation and gets its own deadline.
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	err := s.store.Insert(dbCtx, rec)
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.Error("audit write failed",
			"id", rec.ID,
			"table", rec.Table,
			"operation", rec.Operation,
			"status", rec.Status,
			"error", err.Error(),
		)
	}

	select {
	case s.logChan <- rec:
	default:
		// Mirror buffer full. The durable copy is the store; losing a
		// mirror line is logged, not fatal.
		logger.Warn("audit mirror buffer full, dropping entry", "id", rec.ID)
	}

	if err != nil && s.failClosed {
		return err
	}
	return nil
}

// List reads the trail from the durable store, falling back to the
// in-memory ring when the store is unreachable.
func (s *AuditService) List(ctx context.Context, f repository.ListFilter) ([]*model.AuditRecord, error) {
	records, err := s.store.List(ctx, f)
	if err == nil {
		return records, nil
	}
	logger.Warn("audit store read failed, serving ring buffer", "error", err.Error())
	return s.buffer.List(f.Table, f.Limit), nil
}

func (s *AuditService) processMirror() {
	defer s.wg.Done()
	encoder := json.NewEncoder(s.logFile)
	for rec := range s.logChan {
		if err := encoder.Encode(rec); err != nil {
			logger.Error("audit mirror write failed", "error", err.Error())
		}
		for _, sink := range s.sinks {
			sink(rec)
		}
	}
}

// Close drains the mirror and releases the file.
func (s *AuditService) Close() {
	close(s.logChan)
	s.wg.Wait()
	s.logFile.Close()
}

// auditBuffer is a fixed-size ring of recent records for degraded reads.
type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditRecord
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditRecord, 0, maxSize),
	}
}

func (b *auditBuffer) Add(rec *model.AuditRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, rec)
		return
	}
	b.records[b.nextIndex] = rec
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *auditBuffer) List(table string, limit int) []*model.AuditRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditRecord, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		rec := b.records[idx]
		if rec == nil {
			continue
		}
		if table != "" && rec.Table != table {
			continue
		}
		results = append(results, rec)
		if len(results) >= limit {
			break
		}
	}
	return results
}
