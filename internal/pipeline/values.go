package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"order-mart/internal/store"
)

var timeLayouts = []string{
	store.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	store.DateLayout,
}

// optString reads a text column. The empty string is NULL: the CSV store
// cannot tell the two apart, and every store must decode to the same facts.
func optString(row store.Row, col string) (*string, error) {
	switch v := row[col].(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return &v, nil
	case fmt.Stringer:
		s := v.String()
		return &s, nil
	case int64, int32, int:
		s := fmt.Sprint(v)
		return &s, nil
	default:
		return nil, fmt.Errorf("column %s: unexpected %T", col, v)
	}
}

func reqString(row store.Row, col string) (string, error) {
	s, err := optString(row, col)
	if err != nil {
		return "", err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		return "", fmt.Errorf("column %s is required", col)
	}
	return *s, nil
}

func optTime(row store.Row, col string) (*time.Time, error) {
	switch v := row[col].(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("column %s: cannot parse %q as a timestamp", col, v)
	default:
		return nil, fmt.Errorf("column %s: unexpected %T", col, v)
	}
}

func optDecimal(row store.Row, col string) (decimal.NullDecimal, error) {
	switch v := row[col].(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case decimal.Decimal:
		return decimal.NewNullDecimal(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("column %s: %w", col, err)
		}
		return decimal.NewNullDecimal(d), nil
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v)), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v))), nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("column %s: unexpected %T", col, v)
	}
}

func reqDecimal(row store.Row, col string) (decimal.Decimal, error) {
	d, err := optDecimal(row, col)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !d.Valid {
		return decimal.Decimal{}, fmt.Errorf("column %s is required", col)
	}
	return d.Decimal, nil
}

func optInt(row store.Row, col string) (*int, error) {
	var n int
	switch v := row[col].(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("column %s: %v is not an integer", col, v)
		}
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("column %s: unexpected %T", col, v)
	}
	return &n, nil
}

func reqInt(row store.Row, col string) (int, error) {
	n, err := optInt(row, col)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, fmt.Errorf("column %s is required", col)
	}
	return *n, nil
}

func optFloat(row store.Row, col string) (*float64, error) {
	var f float64
	switch v := row[col].(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case int64:
		f = float64(v)
	case decimal.Decimal:
		f = v.InexactFloat64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("column %s: unexpected %T", col, v)
	}
	return &f, nil
}

// Row encoding helpers. Nil pointers become NULL.

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
