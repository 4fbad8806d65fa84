package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind buckets a storage error for the executor's retry and reporting
// policy.
type ErrorKind int

const (
	// KindOther is any storage error with no special handling.
	KindOther ErrorKind = iota
	// KindTransient failures (timeout, lost connection, serialization
	// conflict) are eligible for a single retry.
	KindTransient
	// KindConstraint violations are client-actionable and never retried.
	KindConstraint
	// KindNotFound is a row lookup miss.
	KindNotFound
)

// Classify maps a driver error onto the executor's taxonomy. Raw driver
// error text stays here; callers report through Sanitize.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"): // integrity_constraint_violation
			return KindConstraint
		case pgErr.Code == "40001" || pgErr.Code == "40P01": // serialization, deadlock
			return KindTransient
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception
			return KindTransient
		case pgErr.Code == "57014": // query_canceled
			return KindTransient
		default:
			return KindOther
		}
	}

	// modernc/sqlite surfaces constraint and lock errors as text only.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "constraint failed"),
		strings.Contains(msg, "constraint violation"),
		strings.Contains(msg, "UNIQUE constraint"),
		strings.Contains(msg, "FOREIGN KEY constraint"),
		strings.Contains(msg, "NOT NULL constraint"):
		return KindConstraint
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "SQLITE_BUSY"):
		return KindTransient
	}
	return KindOther
}

// Sanitize renders a storage error as a short message safe for audit detail
// fields and caller responses. Engine-specific text never leaves this
// package.
func Sanitize(err error) string {
	switch Classify(err) {
	case KindConstraint:
		if isUnique(err) {
			return "duplicate key"
		}
		return "constraint violation"
	case KindTransient:
		return "storage timeout or connectivity failure"
	case KindNotFound:
		return "row not found"
	default:
		return "storage error"
	}
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
