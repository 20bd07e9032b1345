package tools

import (
	"time"

	"github.com/polis-ai/polis/pkg/datasource"
)

// Record field accessors tolerant of backend type differences: the memory
// store carries int64/float64/string, PostgreSQL rows come back as
// int32/int64/float64/time.Time depending on column type.

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format("2006-01-02")
	default:
		return ""
	}
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// asDate parses a date field from either backend representation.
func asDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		if d == "" {
			return time.Time{}, false
		}
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// sampleRecords bounds the raw rows included in a tool result.
func sampleRecords(records []datasource.Record, max int) []datasource.Record {
	if len(records) <= max {
		return records
	}
	return records[:max]
}
