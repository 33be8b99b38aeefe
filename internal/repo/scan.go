package repo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func parseNullDecimal(field string, raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(field, *raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullDecimalParam(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusOrPending(s Status) Status {
	if s == "" {
		return StatusPending
	}
	return s
}

// listWhere renders the WHERE clause of a ListFilter with the driver's placeholder style.
func listWhere(f ListFilter, placeholder func(n int) string) (string, []any) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		clauses = append(clauses, "user_id = "+placeholder(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, "status = "+placeholder(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// listLimit renders the LIMIT clause. A zero or negative limit lists every row.
func listLimit(f ListFilter, args []any, placeholder func(int) string) (string, []any) {
	if f.Limit <= 0 {
		return "", args
	}
	args = append(args, f.Limit)
	return " LIMIT " + placeholder(len(args)), args
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func sqlitePlaceholder(int) string { return "?" }

// SQLite stores timestamps as fixed-width UTC text so they sort lexicographically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, raw)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func parseNullTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := parseTime(*raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
