package model

// Operation is one of the fixed CRUD verbs the gateway supports.
type Operation string

const (
	OpList   Operation = "LIST"
	OpRead   Operation = "READ"
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Mutating reports whether the operation changes data.
func (op Operation) Mutating() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// FilterOp is a comparison operator usable in LIST filters.
type FilterOp string

const (
	FilterEq  FilterOp = "eq"
	FilterNeq FilterOp = "neq"
	FilterLt  FilterOp = "lt"
	FilterLte FilterOp = "lte"
	FilterGt  FilterOp = "gt"
	FilterGte FilterOp = "gte"
)

// Filter restricts a LIST to rows where Column <op> Value.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// Sort orders a LIST by a single described column.
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Page is an offset/limit pagination window. Limit is clamped by the builder.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// CrudRequest is one inbound dynamic-table operation. It lives for the
// duration of a single call and is never persisted.
type CrudRequest struct {
	Table     string         `json:"table"`
	Operation Operation      `json:"operation"`
	Actor     string         `json:"actor"`
	Key       any            `json:"key,omitempty"`     // READ/UPDATE/DELETE
	Payload   map[string]any `json:"payload,omitempty"` // CREATE/UPDATE
	Filters   []Filter       `json:"filters,omitempty"` // LIST
	Sort      *Sort          `json:"sort,omitempty"`    // LIST
	Page      Page           `json:"page"`              // LIST
}

// CrudResult is the executor's answer for one CrudRequest.
type CrudResult struct {
	Status   AuditStatus      `json:"status"`
	Rows     []map[string]any `json:"rows,omitempty"`
	RowCount int64            `json:"row_count"`
	Total    int64            `json:"total,omitempty"` // LIST only: rows matching the filter
	Key      any              `json:"key,omitempty"`   // CREATE only: assigned primary key
}
