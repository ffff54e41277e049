package pipeline

import (
	"time"

	"order-mart/internal/errors"
	"order-mart/internal/models"
	"order-mart/internal/store"
)

// Source column names.
const (
	colCustomerID       = "customer_id"
	colCustomerUniqueID = "customer_unique_id"
	colZipCodePrefix    = "customer_zip_code_prefix"
	colCustomerCity     = "customer_city"
	colCustomerState    = "customer_state"

	colOrderID           = "order_id"
	colOrderStatus       = "order_status"
	colPurchaseTimestamp = "order_purchase_timestamp"
	colApprovedAt        = "order_approved_at"
	colDeliveredCarrier  = "order_delivered_carrier_date"
	colDeliveredCustomer = "order_delivered_customer_date"
	colEstimatedDelivery = "order_estimated_delivery_date"

	colOrderItemID  = "order_item_id"
	colPrice        = "price"
	colFreightValue = "freight_value"
)

func schemaErr(table string, index int, err error) *errors.AppError {
	return errors.SchemaWrap(err, "malformed input row").
		WithDetails("table=%s row=%d", table, index)
}

// DecodeCustomers converts order_customer_dataset rows. Columns other than
// customer_id may be absent or NULL.
func DecodeCustomers(rows []store.Row) ([]models.RawCustomer, error) {
	out := make([]models.RawCustomer, 0, len(rows))
	for i, row := range rows {
		var (
			c   models.RawCustomer
			err error
		)
		if c.CustomerID, err = reqString(row, colCustomerID); err != nil {
			return nil, schemaErr(store.TableCustomers, i, err)
		}
		if c.CustomerUniqueID, err = optString(row, colCustomerUniqueID); err != nil {
			return nil, schemaErr(store.TableCustomers, i, err)
		}
		if c.ZipCodePrefix, err = optString(row, colZipCodePrefix); err != nil {
			return nil, schemaErr(store.TableCustomers, i, err)
		}
		if c.City, err = optString(row, colCustomerCity); err != nil {
			return nil, schemaErr(store.TableCustomers, i, err)
		}
		if c.State, err = optString(row, colCustomerState); err != nil {
			return nil, schemaErr(store.TableCustomers, i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func DecodeOrders(rows []store.Row) ([]models.RawOrder, error) {
	out := make([]models.RawOrder, 0, len(rows))
	for i, row := range rows {
		var (
			o   models.RawOrder
			err error
		)
		if o.OrderID, err = reqString(row, colOrderID); err != nil {
			return nil, schemaErr(store.TableOrders, i, err)
		}
		if o.CustomerID, err = optString(row, colCustomerID); err != nil {
			return nil, schemaErr(store.TableOrders, i, err)
		}
		if o.Status, err = optString(row, colOrderStatus); err != nil {
			return nil, schemaErr(store.TableOrders, i, err)
		}

		timestamps := []struct {
			col string
			dst **time.Time
		}{
			{colPurchaseTimestamp, &o.PurchaseTimestamp},
			{colApprovedAt, &o.ApprovedAt},
			{colDeliveredCarrier, &o.DeliveredCarrierDate},
			{colDeliveredCustomer, &o.DeliveredCustomerDate},
			{colEstimatedDelivery, &o.EstimatedDeliveryDate},
		}
		for _, ts := range timestamps {
			if *ts.dst, err = optTime(row, ts.col); err != nil {
				return nil, schemaErr(store.TableOrders, i, err)
			}
		}

		out = append(out, o)
	}
	return out, nil
}

// DecodeItems converts order_items_dataset rows. Price and freight are
// required; the remaining source columns are ignored.
func DecodeItems(rows []store.Row) ([]models.RawItem, error) {
	out := make([]models.RawItem, 0, len(rows))
	for i, row := range rows {
		var (
			it  models.RawItem
			err error
		)
		if it.OrderID, err = reqString(row, colOrderID); err != nil {
			return nil, schemaErr(store.TableItems, i, err)
		}
		if it.OrderItemID, err = reqInt(row, colOrderItemID); err != nil {
			return nil, schemaErr(store.TableItems, i, err)
		}
		if it.Price, err = reqDecimal(row, colPrice); err != nil {
			return nil, schemaErr(store.TableItems, i, err)
		}
		if it.FreightValue, err = reqDecimal(row, colFreightValue); err != nil {
			return nil, schemaErr(store.TableItems, i, err)
		}
		out = append(out, it)
	}
	return out, nil
}
