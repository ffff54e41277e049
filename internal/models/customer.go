package models

// RawCustomer is one row of order_customer_dataset. Several CustomerIDs may
// share a CustomerUniqueID when the same person placed repeat orders.
type RawCustomer struct {
	CustomerID       string
	CustomerUniqueID *string
	ZipCodePrefix    *string
	City             *string
	State            *string
}

// Customer is the deduplicated customer dimension, one row per unique id.
type Customer struct {
	CustomerID       string  `json:"customer_id"`
	CustomerUniqueID *string `json:"customer_unique_id"`
	ZipCodePrefix    *string `json:"customer_zip_code_prefix,omitempty"`
	City             *string `json:"customer_city"`
	State            *string `json:"customer_state"`
}
