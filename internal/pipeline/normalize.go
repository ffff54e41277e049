package pipeline

import (
	"time"

	"order-mart/internal/errors"
	"order-mart/internal/models"
)

const secondsPerDay = 24 * 60 * 60

// NormalizeOrders truncates every order timestamp to its calendar date. Each
// raw order yields exactly one normalized order; NULL timestamps stay NULL.
func NormalizeOrders(raw []models.RawOrder) ([]models.Order, error) {
	out := make([]models.Order, 0, len(raw))
	for i, o := range raw {
		if o.OrderID == "" {
			return nil, errors.Schema("order_id is required").WithDetails("row=%d", i)
		}
		out = append(out, models.Order{
			OrderID:              o.OrderID,
			CustomerID:           o.CustomerID,
			Status:               o.Status,
			PurchaseDate:         truncateDate(o.PurchaseTimestamp),
			ApprovedDate:         truncateDate(o.ApprovedAt),
			DeliveredCarrierDate: truncateDate(o.DeliveredCarrierDate),
			DeliveredDate:        truncateDate(o.DeliveredCustomerDate),
			EstimatedDate:        truncateDate(o.EstimatedDeliveryDate),
		})
	}
	return out, nil
}

// truncateDate keeps the calendar date as seen in t's own location and
// anchors it at midnight UTC.
func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}

// daysBetween returns to - from in whole days. Both must be dates produced by
// truncateDate. time.Duration saturates past ~292 years, so the difference is
// taken on Unix seconds.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / secondsPerDay)
}
