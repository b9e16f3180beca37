package executor

import (
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/leapstack-labs/leapmetrics/pkg/core"
)

// scanRows reads rows into column-keyed maps. maxRows > 0 stops reading
// after that many rows and reports truncation.
func scanRows(rows *core.Rows, maxRows int) ([]map[string]any, []string, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, false, err
	}

	data := []map[string]any{}
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(data) == maxRows {
			truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, false, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = Normalize(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return data, cols, truncated, nil
}

type float64er interface {
	Float64() float64
}

// Normalize converts a driver value to a JSON-friendly Go value: bytes
// become strings, wide integers become int64 (or float64 when they do not
// fit) and decimals become float64.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case time.Time:
		return x
	case float64er:
		return x.Float64()
	}

	// Decimal types whose Float64 method has a pointer receiver.
	rv := reflect.ValueOf(v)
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	if f, ok := ptr.Interface().(float64er); ok {
		return f.Float64()
	}
	return v
}
