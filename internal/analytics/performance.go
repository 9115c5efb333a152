package analytics

import (
	"sort"
	"time"

	"ticker-strategy-lab/internal/domain"
)

// Period is a named lookback window in calendar days.
type Period struct {
	Name string `json:"name"`
	Days int    `json:"days"`
}

// StandardPeriods returns the fixed lookbacks plus year-to-date as of asOf.
func StandardPeriods(asOf time.Time) []Period {
	asOf = domain.TruncateDay(asOf)
	jan1 := time.Date(asOf.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	return []Period{
		{Name: "1W", Days: 7},
		{Name: "2W", Days: 14},
		{Name: "1M", Days: 30},
		{Name: "3M", Days: 90},
		{Name: "6M", Days: 180},
		{Name: "1Y", Days: 365},
		{Name: "YTD", Days: int(asOf.Sub(jan1).Hours() / 24)},
	}
}

// PeriodPerformance returns the percent change between the first and last
// close on or after asOf minus days. ok is false when fewer than two points
// fall inside the window.
func PeriodPerformance(series *domain.PriceSeries, asOf time.Time, days int) (change float64, ok bool) {
	from := domain.TruncateDay(asOf).AddDate(0, 0, -days)
	window := series.Between(from, asOf)
	if window.Len() < 2 {
		return 0, false
	}
	first, last := window.First().Close, window.Last().Close
	return (last - first) / first * 100, true
}

// PerformanceRow is one (name, period) cell of a performance table.
type PerformanceRow struct {
	Name   string  `json:"name"`
	Ticker string  `json:"ticker"`
	Period string  `json:"period"`
	Change float64 `json:"change_pct"`
	OK     bool    `json:"ok"`
}

// SectorPerformance evaluates every sector ETF over every period.
// series maps ETF ticker to its price history; sectors without a series are
// reported with OK=false. Rows follow Sectors order, then periods order.
func SectorPerformance(series map[string]*domain.PriceSeries, asOf time.Time, periods []Period) []PerformanceRow {
	rows := make([]PerformanceRow, 0, len(Sectors)*len(periods))
	for _, sector := range Sectors {
		s := series[sector.ETF]
		for _, p := range periods {
			row := PerformanceRow{Name: sector.Name, Ticker: sector.ETF, Period: p.Name}
			if s != nil {
				row.Change, row.OK = PeriodPerformance(s, asOf, p.Days)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// RankCompanies returns the performance of each company with data over the
// lookback, best first. Ties keep the constituent order.
func RankCompanies(companies []Company, series map[string]*domain.PriceSeries, asOf time.Time, period Period) []PerformanceRow {
	rows := make([]PerformanceRow, 0, len(companies))
	for _, c := range companies {
		s := series[c.Ticker]
		if s == nil {
			continue
		}
		change, ok := PeriodPerformance(s, asOf, period.Days)
		if !ok {
			continue
		}
		rows = append(rows, PerformanceRow{
			Name:   c.Name,
			Ticker: c.Ticker,
			Period: period.Name,
			Change: change,
			OK:     true,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Change > rows[j].Change })
	return rows
}
