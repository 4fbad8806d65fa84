package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tablegate/tablegate/internal/catalog"
	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/pkg/metrics"
	"github.com/tablegate/tablegate/internal/repository"
	"github.com/tablegate/tablegate/internal/sqlbuilder"
)

// Executor orchestrates one dynamic CRUD request: gate defense, catalog
// resolution, statement construction, transactional execution and the
// always-written audit record. Exactly one audit record leaves here per
// request, whatever the outcome.
type Executor struct {
	catalog    *catalog.Catalog
	builder    *sqlbuilder.Builder
	store      *repository.CrudStore
	audit      *AuditService
	retryDelay time.Duration
}

func NewExecutor(cat *catalog.Catalog, builder *sqlbuilder.Builder, store *repository.CrudStore, audit *AuditService) *Executor {
	return &Executor{
		catalog:    cat,
		builder:    builder,
		store:      store,
		audit:      audit,
		retryDelay: 100 * time.Millisecond,
	}
}

// Execute runs req to completion. A non-nil error always carries an
// *apperrors.AppError with a stable code and a safe message; raw driver
// errors never cross this boundary.
func (e *Executor) Execute(ctx context.Context, req *model.CrudRequest) (*model.CrudResult, error) {
	rec := &model.AuditRecord{
		Table:     req.Table,
		Operation: req.Operation,
		Actor:     req.Actor,
	}

	finish := func(status model.AuditStatus, detail string) error {
		rec.Status = status
		rec.Detail = detail
		metrics.CrudOpsTotal.WithLabelValues(req.Table, string(req.Operation), string(status)).Inc()
		return e.audit.Record(ctx, rec)
	}

	// The boundary gate already ran, but the executor defends on its own:
	// an anonymous or empty actor is denied before any catalog lookup.
	if req.Actor == "" || req.Actor == model.AnonymousActor {
		_ = finish(model.StatusDenied, "missing or anonymous actor")
		return nil, apperrors.NewAuthRequired("authentication required")
	}

	desc, ok := e.catalog.Describe(req.Table)
	if !ok {
		// The caller learns only that the table is unavailable; whether it
		// exists outside the catalog is not disclosed.
		_ = finish(model.StatusDenied, "table not registered in catalog")
		return nil, apperrors.New(apperrors.ErrTableUnavailable, "table not available", nil)
	}

	stmt, err := e.builder.Build(req, desc)
	if err != nil {
		var ve *sqlbuilder.ValidationError
		if errors.As(err, &ve) {
			_ = finish(model.StatusDenied, "validation: "+ve.Error())
			return nil, apperrors.NewValidation(ve.Field, ve.Reason)
		}
		_ = finish(model.StatusDenied, "validation failed")
		return nil, apperrors.NewInvalidRequest("invalid request")
	}

	result, execErr := e.run(ctx, req, desc, stmt)
	if execErr != nil {
		appErr := e.classify(execErr)
		if auditErr := finish(model.StatusFailure, appErr.Message); auditErr != nil {
			return nil, apperrors.New(apperrors.ErrStorageFailure, "audit write failed", auditErr)
		}
		return nil, appErr
	}

	if auditErr := finish(model.StatusSuccess, fmt.Sprintf("rows=%d", result.RowCount)); auditErr != nil {
		return nil, apperrors.New(apperrors.ErrStorageFailure, "audit write failed", auditErr)
	}
	result.Status = model.StatusSuccess
	return result, nil
}

func (e *Executor) run(ctx context.Context, req *model.CrudRequest, desc *model.TableDescriptor, stmt *sqlbuilder.Statement) (*model.CrudResult, error) {
	switch req.Operation {
	case model.OpList:
		return e.runList(ctx, req, desc, stmt)

	case model.OpRead:
		var rows []map[string]any
		err := e.withRetry(ctx, func() error {
			var err error
			rows, err = e.store.Select(ctx, stmt)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &model.CrudResult{Rows: rows, RowCount: int64(len(rows))}, nil

	case model.OpCreate:
		var key any
		err := e.withRetry(ctx, func() error {
			var err error
			key, err = e.store.InsertReturning(ctx, stmt)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &model.CrudResult{RowCount: 1, Key: key}, nil

	case model.OpUpdate, model.OpDelete:
		var affected int64
		err := e.withRetry(ctx, func() error {
			var err error
			affected, err = e.store.Exec(ctx, stmt)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &model.CrudResult{RowCount: affected}, nil

	default:
		return nil, fmt.Errorf("unreachable operation %s", req.Operation)
	}
}

func (e *Executor) runList(ctx context.Context, req *model.CrudRequest, desc *model.TableDescriptor, stmt *sqlbuilder.Statement) (*model.CrudResult, error) {
	countStmt, err := e.builder.BuildCount(req, desc)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	var total int64
	runErr := e.withRetry(ctx, func() error {
		var err error
		if rows, err = e.store.Select(ctx, stmt); err != nil {
			return err
		}
		total, err = e.store.Count(ctx, countStmt)
		return err
	})
	if runErr != nil {
		return nil, runErr
	}
	return &model.CrudResult{Rows: rows, RowCount: int64(len(rows)), Total: total}, nil
}

// withRetry runs fn, retrying once with backoff when the failure is
// transient. Constraint violations and other errors surface immediately.
func (e *Executor) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || repository.Classify(err) != repository.KindTransient {
		return err
	}
	select {
	case <-time.After(e.retryDelay):
	case <-ctx.Done():
		return err
	}
	return fn()
}

func (e *Executor) classify(err error) *apperrors.AppError {
	switch repository.Classify(err) {
	case repository.KindConstraint:
		return apperrors.New(apperrors.ErrConstraintViolation, repository.Sanitize(err), err)
	case repository.KindTransient:
		return apperrors.New(apperrors.ErrStorageFailure, repository.Sanitize(err), err)
	default:
		return apperrors.New(apperrors.ErrStorageFailure, repository.Sanitize(err), err)
	}
}
