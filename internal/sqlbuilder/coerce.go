package sqlbuilder

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tablegate/tablegate/internal/model"
)

// coerceValue checks a scalar against the column spec and normalizes it into
// a driver-bindable value. JSON decoding hands us float64 for every number,
// so integer columns accept integral floats.
func coerceValue(col string, spec model.ColumnSpec, raw any) (any, error) {
	if raw == nil {
		if !spec.Nullable {
			return nil, invalid(col, "null not allowed")
		}
		return nil, nil
	}

	switch spec.Type {
	case model.ColumnText:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid(col, "expected string")
		}
		if spec.MaxLength > 0 && len(s) > spec.MaxLength {
			return nil, invalid(col, fmt.Sprintf("longer than %d bytes", spec.MaxLength))
		}
		return s, nil

	case model.ColumnInteger:
		return coerceInteger(col, raw)

	case model.ColumnDecimal:
		return coerceDecimal(col, raw)

	case model.ColumnBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			// Filter values arrive from the query string as text.
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, invalid(col, "expected boolean")
			}
			return b, nil
		default:
			return nil, invalid(col, "expected boolean")
		}

	case model.ColumnTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, invalid(col, "expected RFC3339 timestamp")
			}
			return t.UTC(), nil
		default:
			return nil, invalid(col, "expected RFC3339 timestamp")
		}

	default:
		return nil, invalid(col, "unsupported column type")
	}
}

func coerceInteger(col string, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, invalid(col, "expected integer")
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, invalid(col, "expected integer")
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, invalid(col, "expected integer")
		}
		return n, nil
	default:
		return nil, invalid(col, "expected integer")
	}
}

func coerceDecimal(col string, raw any) (any, error) {
	var d decimal.Decimal
	switch v := raw.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case json.Number:
		parsed, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, invalid(col, "expected decimal")
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, invalid(col, "expected decimal")
		}
		d = parsed
	default:
		return nil, invalid(col, "expected decimal")
	}
	// Bind as text; both engines cast it into the numeric column without
	// the float round-trip.
	return d.String(), nil
}
