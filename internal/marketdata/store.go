package marketdata

import (
	"sort"
	"time"

	"backsim/internal/config"
	"backsim/types"

	"github.com/shopspring/decimal"
)

// Halt marks a (date, symbol) pair as untradable for the day.
type Halt struct {
	Date     time.Time
	Symbol   string
	IsHalted bool
}

// Store holds the full market panel in memory and answers the lookups
// the engine needs. All dates are normalized to midnight UTC.
type Store struct {
	all      []types.Bar // sorted by (date, symbol)
	dates    []time.Time // sorted unique trading dates
	byDay    map[time.Time][]types.Bar
	byLookup map[time.Time]map[string]types.Bar
	bySymbol map[string][]types.Bar // sorted by date
	halts    map[time.Time]map[string]bool
}

// NewStore builds a store from a bar panel and a halts table.
func NewStore(bars []types.Bar, halts []Halt) *Store {
	s := &Store{
		byDay:    make(map[time.Time][]types.Bar),
		byLookup: make(map[time.Time]map[string]types.Bar),
		bySymbol: make(map[string][]types.Bar),
		halts:    make(map[time.Time]map[string]bool),
	}

	all := make([]types.Bar, len(bars))
	copy(all, bars)
	for i := range all {
		all[i].Date = Normalize(all[i].Date)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].Symbol < all[j].Symbol
	})
	s.all = all

	for _, b := range all {
		s.byDay[b.Date] = append(s.byDay[b.Date], b)
		s.bySymbol[b.Symbol] = append(s.bySymbol[b.Symbol], b)
		day := s.byLookup[b.Date]
		if day == nil {
			day = make(map[string]types.Bar)
			s.byLookup[b.Date] = day
		}
		day[b.Symbol] = b
	}
	for d := range s.byDay {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })

	for _, h := range halts {
		d := Normalize(h.Date)
		day := s.halts[d]
		if day == nil {
			day = make(map[string]bool)
			s.halts[d] = day
		}
		day[h.Symbol] = h.IsHalted
	}
	return s
}

// Normalize truncates a timestamp to its calendar day in UTC.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dates returns all trading dates with data, in chronological order.
func (s *Store) Dates() []time.Time {
	return s.dates
}

// DatesBetween returns trading dates within [start, end]; a zero bound
// is unbounded on that side.
func (s *Store) DatesBetween(start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range s.dates {
		if !start.IsZero() && d.Before(Normalize(start)) {
			continue
		}
		if !end.IsZero() && d.After(Normalize(end)) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Slice returns the bars for one day, sorted by symbol.
func (s *Store) Slice(date time.Time) []types.Bar {
	return s.byDay[Normalize(date)]
}

// Bar returns the bar for a (date, symbol) pair.
func (s *Store) Bar(date time.Time, symbol string) (types.Bar, bool) {
	day, ok := s.byLookup[Normalize(date)]
	if !ok {
		return types.Bar{}, false
	}
	b, ok := day[symbol]
	return b, ok
}

// Halted reports whether the symbol is halted on the given day.
func (s *Store) Halted(date time.Time, symbol string) bool {
	return s.halts[Normalize(date)][symbol]
}

// NextTradingDay returns the first trading date strictly after date.
func (s *Store) NextTradingDay(date time.Time) (time.Time, bool) {
	d := Normalize(date)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	if i >= len(s.dates) {
		return time.Time{}, false
	}
	return s.dates[i], true
}

// History returns all bars strictly before date, in chronological order.
// The returned slice shares the store's backing array; callers must
// treat it as read-only.
func (s *Store) History(date time.Time) []types.Bar {
	d := Normalize(date)
	i := sort.Search(len(s.all), func(i int) bool { return !s.all[i].Date.Before(d) })
	return s.all[:i]
}

// ADV is the trailing mean volume for a symbol over up to lookback bars
// within the lookback business-day window ending the day before date.
// The current day is excluded to avoid look-ahead. Returns zero when no
// prior bars exist in the window.
func (s *Store) ADV(symbol string, date time.Time, lookback int) decimal.Decimal {
	if lookback <= 0 {
		return decimal.Zero
	}
	d := Normalize(date)
	windowStart := subtractBusinessDays(d, lookback)

	bars := s.bySymbol[symbol]
	var volumes []decimal.Decimal
	for _, b := range bars {
		if !b.Date.Before(d) {
			break
		}
		if b.Date.Before(windowStart) {
			continue
		}
		volumes = append(volumes, b.Volume)
	}
	if len(volumes) == 0 {
		return decimal.Zero
	}
	if len(volumes) > lookback {
		volumes = volumes[len(volumes)-lookback:]
	}
	sum := decimal.Zero
	for _, v := range volumes {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(volumes))))
}

// MarkingSeries returns the valuation prices and dividends per symbol
// for one day. column selects the valuation price ("close",
// "adjusted_close" or "open").
func (s *Store) MarkingSeries(date time.Time, column string) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	prices := make(map[string]decimal.Decimal)
	dividends := make(map[string]decimal.Decimal)
	for _, b := range s.Slice(date) {
		switch column {
		case "open":
			prices[b.Symbol] = b.Open
		case "adjusted_close":
			prices[b.Symbol] = b.AdjustedClose
		default:
			prices[b.Symbol] = b.Close
		}
		if !b.Dividend.IsZero() {
			dividends[b.Symbol] = b.Dividend
		}
	}
	return prices, dividends
}

// RefPrices returns the per-symbol reference prices used to size orders
// that will execute on the given day: the close for the next_open and
// next_close fill methods, the typical price for vwap_proxy.
func (s *Store) RefPrices(date time.Time, fillMethod string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, b := range s.Slice(date) {
		if fillMethod == config.FillVWAPProxy {
			out[b.Symbol] = b.TypicalPrice()
		} else {
			out[b.Symbol] = b.Close
		}
	}
	return out
}

// subtractBusinessDays walks n weekdays back from d.
func subtractBusinessDays(d time.Time, n int) time.Time {
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}
