package query

import (
	"encoding/json"
	"strconv"
)

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// number reads v as a float64. SQLite hands back integers as int64 and
// aggregates of text columns as []byte; JSON decoding yields float64 or
// json.Number. Booleans count as 0 and 1.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
