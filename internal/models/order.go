package models

import "time"

type RawOrder struct {
	OrderID               string
	CustomerID            *string
	Status                *string
	PurchaseTimestamp     *time.Time
	ApprovedAt            *time.Time
	DeliveredCarrierDate  *time.Time
	DeliveredCustomerDate *time.Time
	EstimatedDeliveryDate *time.Time
}

// Order is a RawOrder with every timestamp truncated to a calendar date,
// stored as midnight UTC.
type Order struct {
	OrderID              string     `json:"order_id"`
	CustomerID           *string    `json:"customer_id"`
	Status               *string    `json:"order_status"`
	PurchaseDate         *time.Time `json:"purchase_date"`
	ApprovedDate         *time.Time `json:"approved_date"`
	DeliveredCarrierDate *time.Time `json:"delivered_carrier_date"`
	DeliveredDate        *time.Time `json:"delivered_date"`
	EstimatedDate        *time.Time `json:"estimated_date"`
}
