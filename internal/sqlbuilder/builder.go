package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/tablegate/tablegate/internal/model"
)

// Statement is a parameterized statement ready for execution. SQL contains
// `?` placeholders; the store rebinds them for the active driver. Identifier
// text comes exclusively from a catalog descriptor, every value rides in
// Args.
type Statement struct {
	SQL  string
	Args []any
}

// ValidationError rejects a request before any statement reaches storage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

const (
	ReasonUnknownColumn  = "unknown column"
	ReasonMissingColumn  = "missing required column"
	ReasonMissingKey     = "primary key value required"
	ReasonKeyImmutable   = "primary key cannot be changed"
	ReasonEmptyChangeSet = "no columns to update"
	ReasonUnknownOp      = "unsupported operation"
	ReasonBadFilterOp    = "unsupported filter operator"
)

// DefaultPageSize applies when a LIST carries no explicit limit.
const DefaultPageSize = 50

// Builder turns a validated CrudRequest plus its catalog descriptor into a
// parameterized statement.
type Builder struct {
	MaxPageSize int
}

func New(maxPageSize int) *Builder {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Builder{MaxPageSize: maxPageSize}
}

// Build constructs the primary statement for req.
func (b *Builder) Build(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	switch req.Operation {
	case model.OpList:
		return b.buildList(req, desc)
	case model.OpRead:
		return b.buildRead(req, desc)
	case model.OpCreate:
		return b.buildCreate(req, desc)
	case model.OpUpdate:
		return b.buildUpdate(req, desc)
	case model.OpDelete:
		return b.buildDelete(req, desc)
	default:
		return nil, invalid("operation", ReasonUnknownOp)
	}
}

// BuildCount constructs the COUNT statement matching a LIST's filters, used
// for paging metadata.
func (b *Builder) BuildCount(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	where, args, err := b.buildWhere(req.Filters, desc)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, quoteIdent(desc.Name), where)
	return &Statement{SQL: sql, Args: args}, nil
}

func (b *Builder) buildList(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	where, args, err := b.buildWhere(req.Filters, desc)
	if err != nil {
		return nil, err
	}

	order, err := b.buildOrder(req.Sort, desc)
	if err != nil {
		return nil, err
	}

	limit := req.Page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > b.MaxPageSize {
		limit = b.MaxPageSize
	}
	offset := req.Page.Offset
	if offset < 0 {
		offset = 0
	}

	sql := fmt.Sprintf(`SELECT %s FROM %s%s%s LIMIT ? OFFSET ?`,
		selectColumns(desc), quoteIdent(desc.Name), where, order)
	args = append(args, limit, offset)
	return &Statement{SQL: sql, Args: args}, nil
}

func (b *Builder) buildRead(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	key, err := b.coerceKey(req.Key, desc)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		selectColumns(desc), quoteIdent(desc.Name), quoteIdent(desc.PrimaryKey))
	return &Statement{SQL: sql, Args: []any{key}}, nil
}

func (b *Builder) buildCreate(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	for col := range req.Payload {
		if _, ok := desc.Column(col); !ok {
			return nil, invalid(col, ReasonUnknownColumn)
		}
	}
	// Every non-nullable column except the sequence-assigned key must be
	// present.
	for _, col := range desc.ColumnNames() {
		spec, _ := desc.Column(col)
		if spec.Nullable || col == desc.PrimaryKey {
			continue
		}
		if _, ok := req.Payload[col]; !ok {
			return nil, invalid(col, ReasonMissingColumn)
		}
	}

	cols := make([]string, 0, len(req.Payload))
	for _, col := range desc.ColumnNames() {
		if _, ok := req.Payload[col]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return nil, invalid("payload", ReasonEmptyChangeSet)
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		spec, _ := desc.Column(col)
		val, err := coerceValue(col, spec, req.Payload[col])
		if err != nil {
			return nil, err
		}
		quoted[i] = quoteIdent(col)
		marks[i] = "?"
		args = append(args, val)
	}

	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		quoteIdent(desc.Name),
		strings.Join(quoted, ", "),
		strings.Join(marks, ", "),
		quoteIdent(desc.PrimaryKey))
	return &Statement{SQL: sql, Args: args}, nil
}

func (b *Builder) buildUpdate(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	key, err := b.coerceKey(req.Key, desc)
	if err != nil {
		return nil, err
	}
	for col := range req.Payload {
		if _, ok := desc.Column(col); !ok {
			return nil, invalid(col, ReasonUnknownColumn)
		}
		if col == desc.PrimaryKey {
			return nil, invalid(col, ReasonKeyImmutable)
		}
	}
	if len(req.Payload) == 0 {
		return nil, invalid("payload", ReasonEmptyChangeSet)
	}

	sets := make([]string, 0, len(req.Payload))
	args := make([]any, 0, len(req.Payload)+1)
	for _, col := range desc.ColumnNames() {
		raw, ok := req.Payload[col]
		if !ok {
			continue
		}
		spec, _ := desc.Column(col)
		val, err := coerceValue(col, spec, raw)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = ?", quoteIdent(col)))
		args = append(args, val)
	}
	args = append(args, key)

	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`,
		quoteIdent(desc.Name), strings.Join(sets, ", "), quoteIdent(desc.PrimaryKey))
	return &Statement{SQL: sql, Args: args}, nil
}

func (b *Builder) buildDelete(req *model.CrudRequest, desc *model.TableDescriptor) (*Statement, error) {
	key, err := b.coerceKey(req.Key, desc)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`,
		quoteIdent(desc.Name), quoteIdent(desc.PrimaryKey))
	return &Statement{SQL: sql, Args: []any{key}}, nil
}

func (b *Builder) buildWhere(filters []model.Filter, desc *model.TableDescriptor) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		spec, ok := desc.Column(f.Column)
		if !ok {
			return "", nil, invalid(f.Column, ReasonUnknownColumn)
		}
		op, ok := filterOps[f.Op]
		if !ok {
			return "", nil, invalid(f.Column, ReasonBadFilterOp)
		}
		val, err := coerceValue(f.Column, spec, f.Value)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", quoteIdent(f.Column), op))
		args = append(args, val)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (b *Builder) buildOrder(sort *model.Sort, desc *model.TableDescriptor) (string, error) {
	// Always order, with the key as tie-breaker, so pagination is stable.
	pk := quoteIdent(desc.PrimaryKey)
	if sort == nil {
		return fmt.Sprintf(" ORDER BY %s ASC", pk), nil
	}
	if _, ok := desc.Column(sort.Column); !ok {
		return "", invalid(sort.Column, ReasonUnknownColumn)
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	if sort.Column == desc.PrimaryKey {
		return fmt.Sprintf(" ORDER BY %s %s", pk, dir), nil
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", quoteIdent(sort.Column), dir, pk), nil
}

func (b *Builder) coerceKey(key any, desc *model.TableDescriptor) (any, error) {
	if key == nil {
		return nil, invalid(desc.PrimaryKey, ReasonMissingKey)
	}
	spec, _ := desc.Column(desc.PrimaryKey)
	return coerceValue(desc.PrimaryKey, spec, key)
}

var filterOps = map[model.FilterOp]string{
	model.FilterEq:  "=",
	model.FilterNeq: "<>",
	model.FilterLt:  "<",
	model.FilterLte: "<=",
	model.FilterGt:  ">",
	model.FilterGte: ">=",
}

func selectColumns(desc *model.TableDescriptor) string {
	names := desc.ColumnNames()
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}

// quoteIdent double-quotes a catalog identifier. Names were already matched
// against the identifier pattern at catalog load; quoting is belt and
// braces.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
