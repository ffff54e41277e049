package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MonthlyKPI struct {
	MonthStart       time.Time           `json:"month_start"`
	OrderCount       int                 `json:"order_count"`
	Revenue          decimal.Decimal     `json:"revenue"`
	AvgOrderValue    decimal.NullDecimal `json:"avg_order_value"`
	AvgDaysToDeliver *float64            `json:"avg_days_to_deliver"`
	LateRate         float64             `json:"late_rate"`
}

type TopState struct {
	MonthStart    time.Time       `json:"month_start"`
	CustomerState *string         `json:"customer_state"`
	Revenue       decimal.Decimal `json:"revenue"`
}

type CityRevenue struct {
	CustomerState *string         `json:"customer_state"`
	CustomerCity  *string         `json:"customer_city"`
	Revenue       decimal.Decimal `json:"revenue"`
	OrderCount    int             `json:"order_count"`
}

// Views bundles every aggregate derived from one fact table.
type Views struct {
	MonthlyKPIs  []MonthlyKPI  `json:"monthly_kpis"`
	TopStates    []TopState    `json:"top_states"`
	CityRevenue  []CityRevenue `json:"city_revenue"`
	RecentOrders []FactOrder   `json:"recent_orders"`
}
