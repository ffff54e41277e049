package pipeline

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"order-mart/internal/models"
)

// DefaultRecentWindowDays is the trailing window of RecentOrders.
const DefaultRecentWindowDays = 90

// ComputeViews derives all four aggregates from facts. ref is the single
// reference date of the run.
func ComputeViews(facts []models.FactOrder, ref time.Time, windowDays int) models.Views {
	return models.Views{
		MonthlyKPIs:  MonthlyKPIs(facts),
		TopStates:    TopStateByMonth(facts),
		CityRevenue:  CityRevenue(facts),
		RecentOrders: RecentOrders(facts, ref, windowDays),
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type monthAcc struct {
	orders      int
	revenue     decimal.Decimal
	valued      int
	deliverDays int
	delivered   int
	late        int
}

// MonthlyKPIs groups facts by purchase month. Facts without a purchase date
// are left out. Revenue and averages skip NULL values; late_rate counts a NULL
// delay as on time.
func MonthlyKPIs(facts []models.FactOrder) []models.MonthlyKPI {
	groups := make(map[time.Time]*monthAcc)
	for _, f := range facts {
		if f.PurchaseDate == nil {
			continue
		}
		month := monthStart(*f.PurchaseDate)
		acc, ok := groups[month]
		if !ok {
			acc = &monthAcc{}
			groups[month] = acc
		}

		acc.orders++
		if f.GrossOrderValue.Valid {
			acc.revenue = acc.revenue.Add(f.GrossOrderValue.Decimal)
			acc.valued++
		}
		if f.DaysToDeliver != nil {
			acc.deliverDays += *f.DaysToDeliver
			acc.delivered++
		}
		if f.Late() {
			acc.late++
		}
	}

	out := make([]models.MonthlyKPI, 0, len(groups))
	for month, acc := range groups {
		kpi := models.MonthlyKPI{
			MonthStart: month,
			OrderCount: acc.orders,
			Revenue:    acc.revenue,
			LateRate:   roundFloat(float64(acc.late)/float64(acc.orders), 4),
		}
		if acc.valued > 0 {
			avg := acc.revenue.Div(decimal.NewFromInt(int64(acc.valued))).Round(2)
			kpi.AvgOrderValue = decimal.NewNullDecimal(avg)
		}
		if acc.delivered > 0 {
			avg := roundFloat(float64(acc.deliverDays)/float64(acc.delivered), 2)
			kpi.AvgDaysToDeliver = &avg
		}
		out = append(out, kpi)
	}

	slices.SortFunc(out, func(a, b models.MonthlyKPI) int {
		return a.MonthStart.Compare(b.MonthStart)
	})
	return out
}

// nullableKey turns an optional string into a comparable map key that keeps
// NULL distinct from the empty string.
type nullableKey struct {
	value string
	valid bool
}

func keyOf(s *string) nullableKey {
	if s == nil {
		return nullableKey{}
	}
	return nullableKey{value: *s, valid: true}
}

func (k nullableKey) ptr() *string {
	if !k.valid {
		return nil
	}
	v := k.value
	return &v
}

// compare orders NULL after every present value.
func (k nullableKey) compare(o nullableKey) int {
	switch {
	case k.valid && o.valid:
		return strings.Compare(k.value, o.value)
	case k.valid:
		return -1
	case o.valid:
		return 1
	default:
		return 0
	}
}

type monthState struct {
	month time.Time
	state nullableKey
}

// TopStateByMonth returns, for every purchase month, the customer_state with
// the highest summed gross_order_value. Equal revenue is broken by state code
// ascending with a NULL state ranked last, so the result never depends on
// input order.
func TopStateByMonth(facts []models.FactOrder) []models.TopState {
	revenue := make(map[monthState]decimal.Decimal)
	for _, f := range facts {
		if f.PurchaseDate == nil {
			continue
		}
		key := monthState{month: monthStart(*f.PurchaseDate), state: keyOf(f.CustomerState)}
		sum := revenue[key]
		if f.GrossOrderValue.Valid {
			sum = sum.Add(f.GrossOrderValue.Decimal)
		}
		revenue[key] = sum
	}

	best := make(map[time.Time]monthState)
	for key, sum := range revenue {
		current, ok := best[key.month]
		if !ok || ranksAbove(sum, key.state, revenue[current], current.state) {
			best[key.month] = key
		}
	}

	out := make([]models.TopState, 0, len(best))
	for month, key := range best {
		out = append(out, models.TopState{
			MonthStart:    month,
			CustomerState: key.state.ptr(),
			Revenue:       revenue[key],
		})
	}

	slices.SortFunc(out, func(a, b models.TopState) int {
		return a.MonthStart.Compare(b.MonthStart)
	})
	return out
}

func ranksAbove(rev decimal.Decimal, state nullableKey, otherRev decimal.Decimal, otherState nullableKey) bool {
	if c := rev.Cmp(otherRev); c != 0 {
		return c > 0
	}
	return state.compare(otherState) < 0
}

type cityKey struct {
	state nullableKey
	city  nullableKey
}

// CityRevenue groups facts by (customer_state, customer_city). NULL keys form
// their own groups. Sorted by revenue descending, then state and city.
func CityRevenue(facts []models.FactOrder) []models.CityRevenue {
	groups := make(map[cityKey]*models.CityRevenue)
	for _, f := range facts {
		key := cityKey{state: keyOf(f.CustomerState), city: keyOf(f.CustomerCity)}
		g, ok := groups[key]
		if !ok {
			g = &models.CityRevenue{
				CustomerState: key.state.ptr(),
				CustomerCity:  key.city.ptr(),
			}
			groups[key] = g
		}
		g.OrderCount++
		if f.GrossOrderValue.Valid {
			g.Revenue = g.Revenue.Add(f.GrossOrderValue.Decimal)
		}
	}

	out := make([]models.CityRevenue, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}

	slices.SortFunc(out, func(a, b models.CityRevenue) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		if c := keyOf(a.CustomerState).compare(keyOf(b.CustomerState)); c != 0 {
			return c
		}
		return keyOf(a.CustomerCity).compare(keyOf(b.CustomerCity))
	})
	return out
}

// RecentOrders keeps facts purchased on or after ref minus windowDays. ref is
// truncated to its date first. Newest purchases come first.
func RecentOrders(facts []models.FactOrder, ref time.Time, windowDays int) []models.FactOrder {
	if windowDays <= 0 {
		windowDays = DefaultRecentWindowDays
	}
	cutoff := truncateDate(&ref).AddDate(0, 0, -windowDays)

	out := make([]models.FactOrder, 0)
	for _, f := range facts {
		if f.PurchaseDate != nil && !f.PurchaseDate.Before(cutoff) {
			out = append(out, f)
		}
	}

	slices.SortFunc(out, func(a, b models.FactOrder) int {
		if c := b.PurchaseDate.Compare(*a.PurchaseDate); c != 0 {
			return c
		}
		return strings.Compare(a.OrderID, b.OrderID)
	})
	return out
}

func roundFloat(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
