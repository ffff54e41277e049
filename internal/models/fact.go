package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactOrder is the order-grain row of fact_orders.
type FactOrder struct {
	OrderID          string              `json:"order_id"`
	CustomerID       *string             `json:"customer_id"`
	CustomerUniqueID *string             `json:"customer_unique_id"`
	CustomerCity     *string             `json:"customer_city"`
	CustomerState    *string             `json:"customer_state"`
	Status           *string             `json:"order_status"`
	PurchaseDate     *time.Time          `json:"purchase_date"`
	DeliveredDate    *time.Time          `json:"delivered_date"`
	EstimatedDate    *time.Time          `json:"estimated_date"`
	DaysToDeliver    *int                `json:"days_to_deliver"`
	DelayDays        *int                `json:"delay_days"`
	ItemsValue       decimal.NullDecimal `json:"items_value"`
	FreightValue     decimal.NullDecimal `json:"freight_value"`
	GrossOrderValue  decimal.NullDecimal `json:"gross_order_value"`
	ItemCount        *int                `json:"item_count"`
}

// Late reports whether the order was delivered after its estimate. A missing
// delay counts as not late.
func (f FactOrder) Late() bool {
	return f.DelayDays != nil && *f.DelayDays > 0
}
