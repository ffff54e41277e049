package pipeline

import (
	"order-mart/internal/models"
	"order-mart/internal/store"
)

var FactOrdersSpec = store.TableSpec{
	Name: store.TableFactOrders,
	Columns: []store.Column{
		{Name: "order_id", Type: store.ColText},
		{Name: "customer_id", Type: store.ColText},
		{Name: "customer_unique_id", Type: store.ColText},
		{Name: "customer_city", Type: store.ColText},
		{Name: "customer_state", Type: store.ColText},
		{Name: "order_status", Type: store.ColText},
		{Name: "purchase_date", Type: store.ColDate},
		{Name: "delivered_date", Type: store.ColDate},
		{Name: "estimated_date", Type: store.ColDate},
		{Name: "days_to_deliver", Type: store.ColInteger},
		{Name: "delay_days", Type: store.ColInteger},
		{Name: "items_value", Type: store.ColNumeric},
		{Name: "freight_value", Type: store.ColNumeric},
		{Name: "gross_order_value", Type: store.ColNumeric},
		{Name: "item_count", Type: store.ColInteger},
	},
	PrimaryKey: []string{"order_id"},
	Indexes: [][]string{
		{"customer_unique_id"},
		{"purchase_date"},
		{"customer_state"},
	},
}

var MonthlyKPIsSpec = store.TableSpec{
	Name: store.ViewMonthlyKPIs,
	Columns: []store.Column{
		{Name: "month_start", Type: store.ColDate},
		{Name: "order_count", Type: store.ColInteger},
		{Name: "revenue", Type: store.ColNumeric},
		{Name: "avg_order_value", Type: store.ColNumeric},
		{Name: "avg_days_to_deliver", Type: store.ColFloat},
		{Name: "late_rate", Type: store.ColFloat},
	},
	PrimaryKey: []string{"month_start"},
}

var TopStateSpec = store.TableSpec{
	Name: store.ViewTopStateByMonth,
	Columns: []store.Column{
		{Name: "month_start", Type: store.ColDate},
		{Name: "customer_state", Type: store.ColText},
		{Name: "revenue", Type: store.ColNumeric},
	},
	PrimaryKey: []string{"month_start"},
}

// CityRevenueSpec has no primary key: NULL state or city is a valid group.
var CityRevenueSpec = store.TableSpec{
	Name: store.ViewCityRevenue,
	Columns: []store.Column{
		{Name: "customer_state", Type: store.ColText},
		{Name: "customer_city", Type: store.ColText},
		{Name: "revenue", Type: store.ColNumeric},
		{Name: "order_count", Type: store.ColInteger},
	},
	Indexes: [][]string{
		{"customer_state", "customer_city"},
		{"revenue"},
	},
}

var RecentOrdersSpec = func() store.TableSpec {
	spec := FactOrdersSpec
	spec.Name = store.ViewRecentOrders
	spec.Indexes = [][]string{{"purchase_date"}}
	return spec
}()

func FactRows(facts []models.FactOrder) []store.Row {
	rows := make([]store.Row, len(facts))
	for i, f := range facts {
		rows[i] = store.Row{
			"order_id":           f.OrderID,
			"customer_id":        nullString(f.CustomerID),
			"customer_unique_id": nullString(f.CustomerUniqueID),
			"customer_city":      nullString(f.CustomerCity),
			"customer_state":     nullString(f.CustomerState),
			"order_status":       nullString(f.Status),
			"purchase_date":      nullDate(f.PurchaseDate),
			"delivered_date":     nullDate(f.DeliveredDate),
			"estimated_date":     nullDate(f.EstimatedDate),
			"days_to_deliver":    nullInt(f.DaysToDeliver),
			"delay_days":         nullInt(f.DelayDays),
			"items_value":        nullDecimal(f.ItemsValue),
			"freight_value":      nullDecimal(f.FreightValue),
			"gross_order_value":  nullDecimal(f.GrossOrderValue),
			"item_count":         nullInt(f.ItemCount),
		}
	}
	return rows
}

func MonthlyKPIRows(kpis []models.MonthlyKPI) []store.Row {
	rows := make([]store.Row, len(kpis))
	for i, k := range kpis {
		rows[i] = store.Row{
			"month_start":         k.MonthStart,
			"order_count":         int64(k.OrderCount),
			"revenue":             k.Revenue,
			"avg_order_value":     nullDecimal(k.AvgOrderValue),
			"avg_days_to_deliver": nullFloat(k.AvgDaysToDeliver),
			"late_rate":           k.LateRate,
		}
	}
	return rows
}

func TopStateRows(top []models.TopState) []store.Row {
	rows := make([]store.Row, len(top))
	for i, t := range top {
		rows[i] = store.Row{
			"month_start":    t.MonthStart,
			"customer_state": nullString(t.CustomerState),
			"revenue":        t.Revenue,
		}
	}
	return rows
}

func CityRevenueRows(cities []models.CityRevenue) []store.Row {
	rows := make([]store.Row, len(cities))
	for i, c := range cities {
		rows[i] = store.Row{
			"customer_state": nullString(c.CustomerState),
			"customer_city":  nullString(c.CustomerCity),
			"revenue":        c.Revenue,
			"order_count":    int64(c.OrderCount),
		}
	}
	return rows
}

// DecodeFacts reads fact_orders rows back, whatever store produced them.
func DecodeFacts(rows []store.Row) ([]models.FactOrder, error) {
	out := make([]models.FactOrder, 0, len(rows))
	for i, row := range rows {
		f, err := decodeFact(row)
		if err != nil {
			return nil, schemaErr(store.TableFactOrders, i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeFact(row store.Row) (models.FactOrder, error) {
	var (
		f   models.FactOrder
		err error
	)
	if f.OrderID, err = reqString(row, "order_id"); err != nil {
		return f, err
	}

	strs := []struct {
		col string
		dst **string
	}{
		{"customer_id", &f.CustomerID},
		{"customer_unique_id", &f.CustomerUniqueID},
		{"customer_city", &f.CustomerCity},
		{"customer_state", &f.CustomerState},
		{"order_status", &f.Status},
	}
	for _, s := range strs {
		if *s.dst, err = optString(row, s.col); err != nil {
			return f, err
		}
	}

	if f.PurchaseDate, err = optTime(row, "purchase_date"); err != nil {
		return f, err
	}
	if f.DeliveredDate, err = optTime(row, "delivered_date"); err != nil {
		return f, err
	}
	if f.EstimatedDate, err = optTime(row, "estimated_date"); err != nil {
		return f, err
	}
	f.PurchaseDate = truncateDate(f.PurchaseDate)
	f.DeliveredDate = truncateDate(f.DeliveredDate)
	f.EstimatedDate = truncateDate(f.EstimatedDate)

	if f.DaysToDeliver, err = optInt(row, "days_to_deliver"); err != nil {
		return f, err
	}
	if f.DelayDays, err = optInt(row, "delay_days"); err != nil {
		return f, err
	}
	if f.ItemsValue, err = optDecimal(row, "items_value"); err != nil {
		return f, err
	}
	if f.FreightValue, err = optDecimal(row, "freight_value"); err != nil {
		return f, err
	}
	if f.GrossOrderValue, err = optDecimal(row, "gross_order_value"); err != nil {
		return f, err
	}
	if f.ItemCount, err = optInt(row, "item_count"); err != nil {
		return f, err
	}
	return f, nil
}
