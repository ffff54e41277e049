package models

import "github.com/shopspring/decimal"

// RawItem is one line of order_items_dataset. Price and FreightValue can be
// negative when upstream applied refund adjustments.
type RawItem struct {
	OrderID      string
	OrderItemID  int
	Price        decimal.Decimal
	FreightValue decimal.Decimal
}

type Item struct {
	OrderID      string          `json:"order_id"`
	OrderItemID  int             `json:"order_item_id"`
	Price        decimal.Decimal `json:"price"`
	FreightValue decimal.Decimal `json:"freight_value"`
}

// ItemRollup aggregates the items of one order.
type ItemRollup struct {
	OrderID      string
	ItemsValue   decimal.Decimal
	FreightValue decimal.Decimal
	ItemCount    int
}
