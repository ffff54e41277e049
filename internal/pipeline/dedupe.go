package pipeline

import (
	"slices"
	"strings"

	"order-mart/internal/errors"
	"order-mart/internal/models"
)

// groupKey identifies a dedup group. Rows without a unique id form their own
// group keyed on customer_id, so they can never merge with a real identity.
type groupKey struct {
	uniqueID string
	orphan   bool
}

// DedupeCustomers collapses customers that share a customer_unique_id into the
// row with the smallest customer_id. Output is ordered by customer_id.
func DedupeCustomers(raw []models.RawCustomer) ([]models.Customer, error) {
	chosen := make(map[groupKey]models.RawCustomer, len(raw))

	for i, c := range raw {
		if c.CustomerID == "" {
			return nil, errors.Schema("customer_id is required").WithDetails("row=%d", i)
		}

		key := groupKey{orphan: c.CustomerUniqueID == nil}
		if key.orphan {
			key.uniqueID = c.CustomerID
		} else {
			key.uniqueID = *c.CustomerUniqueID
		}

		current, seen := chosen[key]
		if !seen || compareIDs(c.CustomerID, current.CustomerID) < 0 {
			chosen[key] = c
		}
	}

	out := make([]models.Customer, 0, len(chosen))
	for _, c := range chosen {
		out = append(out, models.Customer{
			CustomerID:       c.CustomerID,
			CustomerUniqueID: c.CustomerUniqueID,
			ZipCodePrefix:    c.ZipCodePrefix,
			City:             c.City,
			State:            c.State,
		})
	}

	slices.SortFunc(out, func(a, b models.Customer) int {
		if n := compareIDs(a.CustomerID, b.CustomerID); n != 0 {
			return n
		}
		return compareOptional(a.CustomerUniqueID, b.CustomerUniqueID)
	})
	return out, nil
}

// compareIDs is a total order on identifiers: unsigned decimal integers come
// first in numeric order, everything else follows byte-wise. Numeric ties
// such as "7" and "007" fall back to byte order.
func compareIDs(a, b string) int {
	da, db := isDigits(a), isDigits(b)
	switch {
	case da && db:
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) - len(tb)
		}
		if n := strings.Compare(ta, tb); n != 0 {
			return n
		}
	case da:
		return -1
	case db:
		return 1
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// compareOptional orders nil after every present value.
func compareOptional(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return strings.Compare(*a, *b)
	}
}
