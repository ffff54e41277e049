package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"order-mart/internal/errors"
	"order-mart/internal/models"
)

// RollupItems sums sanitized items per order. Orders without items have no
// entry.
func RollupItems(items []models.Item) map[string]*models.ItemRollup {
	rollups := make(map[string]*models.ItemRollup)
	for _, it := range items {
		r, ok := rollups[it.OrderID]
		if !ok {
			r = &models.ItemRollup{OrderID: it.OrderID}
			rollups[it.OrderID] = r
		}
		r.ItemsValue = r.ItemsValue.Add(it.Price)
		r.FreightValue = r.FreightValue.Add(it.FreightValue)
		r.ItemCount++
	}
	return rollups
}

// BuildFacts produces one fact row per order, in input order. Customers and
// item rollups are left-joined: an order with no matching customer keeps NULL
// customer attributes, and an order with no items keeps NULL money fields and
// item_count.
func BuildFacts(orders []models.Order, customers []models.Customer, items []models.Item) ([]models.FactOrder, error) {
	dim := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		if _, dup := dim[c.CustomerID]; dup {
			return nil, errors.Integrity("customer dimension has duplicate customer_id").
				WithDetails("customer_id=%s", c.CustomerID)
		}
		dim[c.CustomerID] = c
	}

	rollups := RollupItems(items)

	seen := make(map[string]struct{}, len(orders))
	facts := make([]models.FactOrder, 0, len(orders))

	for _, o := range orders {
		if _, dup := seen[o.OrderID]; dup {
			return nil, errors.Integrity("duplicate order_id").WithDetails("order_id=%s", o.OrderID)
		}
		seen[o.OrderID] = struct{}{}

		f := models.FactOrder{
			OrderID:       o.OrderID,
			CustomerID:    o.CustomerID,
			Status:        o.Status,
			PurchaseDate:  o.PurchaseDate,
			DeliveredDate: o.DeliveredDate,
			EstimatedDate: o.EstimatedDate,
		}

		if o.CustomerID != nil {
			if c, ok := dim[*o.CustomerID]; ok {
				f.CustomerUniqueID = c.CustomerUniqueID
				f.CustomerCity = c.City
				f.CustomerState = c.State
			}
		}

		if r, ok := rollups[o.OrderID]; ok {
			count := r.ItemCount
			f.ItemsValue = decimal.NewNullDecimal(r.ItemsValue)
			f.FreightValue = decimal.NewNullDecimal(r.FreightValue)
			f.ItemCount = &count
		}

		if err := computeKPIs(&f); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}

	return facts, nil
}

func computeKPIs(f *models.FactOrder) error {
	f.DaysToDeliver = dayDiff(f.PurchaseDate, f.DeliveredDate)
	f.DelayDays = dayDiff(f.EstimatedDate, f.DeliveredDate)

	switch {
	case f.ItemsValue.Valid && f.FreightValue.Valid:
		f.GrossOrderValue = decimal.NewNullDecimal(f.ItemsValue.Decimal.Add(f.FreightValue.Decimal))
	case f.ItemsValue.Valid != f.FreightValue.Valid:
		return errors.Computation("item rollup has only one of items_value and freight_value").
			WithDetails("order_id=%s", f.OrderID)
	}
	return nil
}

// dayDiff returns to - from in days, or nil when either side is NULL.
func dayDiff(from, to *time.Time) *int {
	if from == nil || to == nil {
		return nil
	}
	n := daysBetween(*from, *to)
	return &n
}
