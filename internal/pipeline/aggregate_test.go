package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-mart/internal/models"
)

func intp(n int) *int { return &n }

func gross(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func sampleFacts() []models.FactOrder {
	return []models.FactOrder{
		{OrderID: "o1", CustomerState: str("SP"), CustomerCity: str("sao paulo"), PurchaseDate: day(2024, 3, 2),
			GrossOrderValue: gross("100"), DaysToDeliver: intp(4), DelayDays: intp(2)},
		{OrderID: "o2", CustomerState: str("RJ"), CustomerCity: str("rio"), PurchaseDate: day(2024, 3, 20),
			GrossOrderValue: gross("100"), DaysToDeliver: intp(8), DelayDays: intp(-3)},
		{OrderID: "o3", CustomerState: str("SP"), CustomerCity: str("campinas"), PurchaseDate: day(2024, 4, 1),
			GrossOrderValue: gross("50.5")},
		{OrderID: "o4", CustomerState: str("MG"), PurchaseDate: day(2024, 4, 9),
			GrossOrderValue: gross("49.25"), DaysToDeliver: intp(1), DelayDays: intp(0)},
		{OrderID: "o5", PurchaseDate: day(2024, 4, 30)},
		{OrderID: "o6", CustomerState: str("SP"), CustomerCity: str("sao paulo"), GrossOrderValue: gross("999")},
	}
}

func TestMonthlyKPIs(t *testing.T) {
	kpis := MonthlyKPIs(sampleFacts())
	require.Len(t, kpis, 2, "the order without purchase date is excluded")

	march := kpis[0]
	assert.Equal(t, *day(2024, 3, 1), march.MonthStart)
	assert.Equal(t, 2, march.OrderCount)
	assert.True(t, march.Revenue.Equal(dec("200")))
	assert.True(t, march.AvgOrderValue.Decimal.Equal(dec("100")))
	require.NotNil(t, march.AvgDaysToDeliver)
	assert.Equal(t, 6.0, *march.AvgDaysToDeliver)
	assert.Equal(t, 0.5, march.LateRate)

	april := kpis[1]
	assert.Equal(t, *day(2024, 4, 1), april.MonthStart)
	assert.Equal(t, 3, april.OrderCount)
	assert.True(t, april.Revenue.Equal(dec("99.75")))
	assert.True(t, april.AvgOrderValue.Decimal.Equal(dec("49.88")), "got %s", april.AvgOrderValue.Decimal)
	assert.Equal(t, 1.0, *april.AvgDaysToDeliver)
	assert.Equal(t, 0.0, april.LateRate, "NULL delay counts as not late")
}

func TestMonthlyKPIs_AllNullMonth(t *testing.T) {
	kpis := MonthlyKPIs([]models.FactOrder{{OrderID: "o1", PurchaseDate: day(2024, 5, 5)}})
	require.Len(t, kpis, 1)
	assert.True(t, kpis[0].Revenue.IsZero())
	assert.False(t, kpis[0].AvgOrderValue.Valid)
	assert.Nil(t, kpis[0].AvgDaysToDeliver)
}

func TestMonthlyKPIs_RevenueMatchesFacts(t *testing.T) {
	facts := sampleFacts()

	var want decimal.Decimal
	for _, f := range facts {
		if f.PurchaseDate != nil && f.GrossOrderValue.Valid {
			want = want.Add(f.GrossOrderValue.Decimal)
		}
	}

	var got decimal.Decimal
	for _, k := range MonthlyKPIs(facts) {
		got = got.Add(k.Revenue)
	}
	assert.True(t, want.Equal(got), "want %s got %s", want, got)
}

func TestTopStateByMonth(t *testing.T) {
	top := TopStateByMonth(sampleFacts())
	require.Len(t, top, 2)

	// March is an exact 100/100 tie between SP and RJ.
	assert.Equal(t, "RJ", *top[0].CustomerState)
	assert.True(t, top[0].Revenue.Equal(dec("100")))

	assert.Equal(t, "SP", *top[1].CustomerState)
	assert.True(t, top[1].Revenue.Equal(dec("50.5")))
}

func TestTopStateByMonth_TieIsStableAcrossInputOrder(t *testing.T) {
	facts := []models.FactOrder{
		{OrderID: "a", CustomerState: str("SP"), PurchaseDate: day(2024, 3, 1), GrossOrderValue: gross("100")},
		{OrderID: "b", CustomerState: str("BA"), PurchaseDate: day(2024, 3, 2), GrossOrderValue: gross("100")},
		{OrderID: "c", PurchaseDate: day(2024, 3, 3), GrossOrderValue: gross("100")},
	}
	reversed := []models.FactOrder{facts[2], facts[1], facts[0]}

	for i := 0; i < 20; i++ {
		first := TopStateByMonth(facts)
		second := TopStateByMonth(reversed)
		require.Len(t, first, 1)
		assert.Equal(t, "BA", *first[0].CustomerState)
		assert.Equal(t, first, second)
	}
}

func TestTopStateByMonth_NullStateCanWin(t *testing.T) {
	facts := []models.FactOrder{
		{OrderID: "a", CustomerState: str("SP"), PurchaseDate: day(2024, 3, 1), GrossOrderValue: gross("10")},
		{OrderID: "b", PurchaseDate: day(2024, 3, 2), GrossOrderValue: gross("20")},
	}
	top := TopStateByMonth(facts)
	require.Len(t, top, 1)
	assert.Nil(t, top[0].CustomerState)
}

func TestCityRevenue(t *testing.T) {
	cities := CityRevenue(sampleFacts())

	// sao paulo: o1 + o6, no purchase date filter applies here.
	require.NotEmpty(t, cities)
	assert.Equal(t, "sao paulo", *cities[0].CustomerCity)
	assert.True(t, cities[0].Revenue.Equal(dec("1099")))
	assert.Equal(t, 2, cities[0].OrderCount)

	var nullState, nullCity int
	for _, c := range cities {
		if c.CustomerState == nil {
			nullState++
			assert.True(t, c.Revenue.IsZero())
		}
		if c.CustomerState != nil && *c.CustomerState == "MG" {
			assert.Nil(t, c.CustomerCity)
			nullCity++
		}
	}
	assert.Equal(t, 1, nullState, "NULL state is its own group")
	assert.Equal(t, 1, nullCity, "NULL city is its own group")
	assert.Len(t, cities, 5)
}

func TestRecentOrders(t *testing.T) {
	ref := time.Date(2024, 6, 29, 17, 45, 0, 0, time.UTC)
	facts := []models.FactOrder{
		{OrderID: "edge", PurchaseDate: day(2024, 3, 31)},
		{OrderID: "outside", PurchaseDate: day(2024, 3, 30)},
		{OrderID: "recent", PurchaseDate: day(2024, 6, 1)},
		{OrderID: "undated"},
	}

	got := RecentOrders(facts, ref, 90)
	require.Len(t, got, 2)
	assert.Equal(t, "recent", got[0].OrderID)
	assert.Equal(t, "edge", got[1].OrderID, "lower bound is inclusive")
}

func TestRecentOrders_DefaultWindow(t *testing.T) {
	ref := time.Date(2024, 6, 29, 0, 0, 0, 0, time.UTC)
	facts := []models.FactOrder{{OrderID: "edge", PurchaseDate: day(2024, 3, 31)}}
	assert.Len(t, RecentOrders(facts, ref, 0), 1)
}
