package model

import "sort"

// ColumnType enumerates the value types the gateway knows how to bind.
type ColumnType string

const (
	ColumnText      ColumnType = "text"
	ColumnInteger   ColumnType = "integer"
	ColumnDecimal   ColumnType = "decimal"
	ColumnBoolean   ColumnType = "boolean"
	ColumnTimestamp ColumnType = "timestamp"
)

// KnownColumnType reports whether t is one of the supported column types.
func KnownColumnType(t ColumnType) bool {
	switch t {
	case ColumnText, ColumnInteger, ColumnDecimal, ColumnBoolean, ColumnTimestamp:
		return true
	default:
		return false
	}
}

// ColumnSpec describes a single allowed column of a catalog table.
type ColumnSpec struct {
	Type      ColumnType `json:"type"`
	Nullable  bool       `json:"nullable"`
	MaxLength int        `json:"max_length,omitempty"` // text columns only, 0 = unbounded
}

// TableDescriptor is one catalog entry: the complete allowed shape of a
// table. Descriptors are immutable after catalog load; every identifier that
// may appear in a constructed statement comes from here and nowhere else.
type TableDescriptor struct {
	Name       string                `json:"name"`
	PrimaryKey string                `json:"primary_key"`
	Columns    map[string]ColumnSpec `json:"columns"`
}

// Column returns the spec for name, if described.
func (d *TableDescriptor) Column(name string) (ColumnSpec, bool) {
	spec, ok := d.Columns[name]
	return spec, ok
}

// ColumnNames returns all described column names in stable (sorted) order,
// so generated statements are deterministic.
func (d *TableDescriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
