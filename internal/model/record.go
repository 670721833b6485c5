package model

import (
	"strconv"
	"strings"
	"time"
)

// Record is the untyped column map exchanged with a backend.
// Keys are column names (e.g. "user_id", "created_at").
type Record map[string]any

// Common column names shared by all collections.
const (
	ColID        = "id"
	ColUserID    = "user_id"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

// timeLayouts are the textual timestamp forms seen from backends.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// String returns the text value of key, or "" when absent or null.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	case interface{ String() string }:
		return v.String()
	default:
		return ""
	}
}

// NullableString returns nil when key is absent, null, or empty text.
func (r Record) NullableString(key string) *string {
	s := r.String(key)
	if s == "" {
		return nil
	}
	return &s
}

// Bool tolerates SQLite integers and textual booleans.
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case []byte:
		b, _ := strconv.ParseBool(string(v))
		return b
	default:
		return false
	}
}

// Time decodes key as a timestamp. Missing or malformed values decode to
// now so that one corrupt row never blocks the rest of a collection.
func (r Record) Time(key string) time.Time {
	t, ok := r.TimeOK(key)
	if !ok {
		return time.Now().UTC()
	}
	return t
}

// TimeOK is Time without the fallback.
func (r Record) TimeOK(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case int64:
		return time.UnixMilli(v).UTC(), true
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Only returns a copy of r restricted to the allowed column names.
func (r Record) Only(allowed []string) Record {
	out := make(Record, len(r))
	for _, k := range allowed {
		if v, ok := r[k]; ok {
			out[k] = v
		}
	}
	return out
}
