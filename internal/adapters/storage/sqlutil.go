package storage

import (
	"database/sql"
	"strings"
	"time"
)

// DateLayout is the text layout timestamps are stored in. It is fixed width so
// stored values compare correctly as strings in SQL range queries.
const DateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using DateLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// NullTime returns nil for the zero time so nullable columns stay NULL.
func NullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// ParseTime parses a stored timestamp. Unparseable or empty values yield the zero time.
func ParseTime(s string) time.Time {
	for _, layout := range []string{DateLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseNullTime parses a nullable timestamp column.
func ParseNullTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	return ParseTime(s.String)
}

// NullString returns nil for the empty string.
func NullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// JoinList stores a small string list as a comma separated column.
func JoinList(items []string) string {
	return strings.Join(items, ",")
}

// SplitList is the inverse of JoinList. An empty column yields nil.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Placeholders returns "?, ?, ?" for n arguments.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
