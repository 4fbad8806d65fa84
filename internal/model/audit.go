package model

import (
	"time"
	"unicode/utf8"
)

// AuditStatus classifies the outcome of one attempted operation.
type AuditStatus string

const (
	StatusSuccess AuditStatus = "SUCCESS"
	StatusDenied  AuditStatus = "DENIED"
	StatusFailure AuditStatus = "FAILURE"
)

// MaxAuditDetail bounds the detail message persisted with an audit record.
// Raw driver errors and stack traces never end up here; the executor writes
// sanitized summaries only.
const MaxAuditDetail = 512

// AuditRecord is one append-only entry in audit_dynamic_crud. Exactly one is
// written per CrudRequest that reaches the executor, whatever the outcome.
type AuditRecord struct {
	ID        string      `db:"id" json:"id"`
	Table     string      `db:"table_name" json:"table_name"`
	Operation Operation   `db:"operation" json:"operation"`
	Actor     string      `db:"actor" json:"actor"`
	Status    AuditStatus `db:"status" json:"status"`
	Detail    string      `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// Truncate bounds Detail to MaxAuditDetail bytes, backing up to a rune
// boundary so the persisted text stays valid UTF-8.
func (r *AuditRecord) Truncate() {
	if len(r.Detail) <= MaxAuditDetail {
		return
	}
	cut := MaxAuditDetail
	for cut > 0 && !utf8.RuneStart(r.Detail[cut]) {
		cut--
	}
	r.Detail = r.Detail[:cut]
}
