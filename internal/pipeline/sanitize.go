package pipeline

import (
	"github.com/shopspring/decimal"

	"order-mart/internal/errors"
	"order-mart/internal/models"
)

type itemKey struct {
	orderID string
	itemID  int
}

// SanitizeItems floors price and freight at zero. A repeated
// (order_id, order_item_id) pair is an integrity failure: rolling it up would
// overstate item_count.
func SanitizeItems(raw []models.RawItem) ([]models.Item, error) {
	seen := make(map[itemKey]int, len(raw))
	out := make([]models.Item, 0, len(raw))

	for i, it := range raw {
		if it.OrderID == "" {
			return nil, errors.Schema("order_id is required").WithDetails("row=%d", i)
		}
		if it.OrderItemID < 1 {
			return nil, errors.Schema("order_item_id must be positive").
				WithDetails("row=%d order_id=%s order_item_id=%d", i, it.OrderID, it.OrderItemID)
		}

		key := itemKey{orderID: it.OrderID, itemID: it.OrderItemID}
		if first, dup := seen[key]; dup {
			return nil, errors.Integrity("duplicate order item key").
				WithDetails("order_id=%s order_item_id=%d rows=%d,%d", it.OrderID, it.OrderItemID, first, i)
		}
		seen[key] = i

		out = append(out, models.Item{
			OrderID:      it.OrderID,
			OrderItemID:  it.OrderItemID,
			Price:        decimal.Max(it.Price, decimal.Zero),
			FreightValue: decimal.Max(it.FreightValue, decimal.Zero),
		})
	}
	return out, nil
}
