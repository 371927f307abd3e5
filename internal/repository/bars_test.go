package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type mockBarsRepository struct {
	bars     []barRow
	halts    []haltRow
	err      error
	gotStart time.Time
	gotEnd   time.Time
}

func (m *mockBarsRepository) GetDailyBars(ctx context.Context, start, end time.Time) ([]barRow, error) {
	m.gotStart, m.gotEnd = start, end
	return m.bars, m.err
}

func (m *mockBarsRepository) GetHalts(ctx context.Context, start, end time.Time) ([]haltRow, error) {
	m.gotStart, m.gotEnd = start, end
	return m.halts, m.err
}

func testDate(d int) time.Time {
	return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestGetBars(t *testing.T) {
	dividend := decimal.RequireFromString("0.25")
	delisted := testDate(30)
	mock := &mockBarsRepository{bars: []barRow{
		{
			Date:          testDate(2),
			Symbol:        "AAPL",
			Open:          decimal.RequireFromString("99"),
			High:          decimal.RequireFromString("102"),
			Low:           decimal.RequireFromString("98"),
			Close:         decimal.RequireFromString("100"),
			AdjustedClose: decimal.RequireFromString("100"),
			Volume:        decimal.RequireFromString("1000"),
		},
		{
			Date:          testDate(2),
			Symbol:        "MSFT",
			Close:         decimal.RequireFromString("200"),
			AdjustedClose: decimal.RequireFromString("199.5"),
			Volume:        decimal.RequireFromString("2000"),
			Dividend:      &dividend,
			DelistingDate: &delisted,
		},
	}}
	db := Database{bars: mock}

	bars, err := db.GetBars(testDate(1), testDate(31), context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !mock.gotStart.Equal(testDate(1)) || !mock.gotEnd.Equal(testDate(31)) {
		t.Errorf("query window = [%s, %s]", mock.gotStart, mock.gotEnd)
	}

	aapl := bars[0]
	if aapl.Symbol != "AAPL" || !aapl.Close.Equal(decimal.RequireFromString("100")) {
		t.Errorf("first bar = %+v", aapl)
	}
	if !aapl.Dividend.IsZero() || aapl.DelistingDate != nil {
		t.Errorf("nil optional columns converted to %+v", aapl)
	}

	msft := bars[1]
	if !msft.Dividend.Equal(dividend) {
		t.Errorf("dividend = %s, want %s", msft.Dividend, dividend)
	}
	if msft.DelistingDate == nil || !msft.DelistingDate.Equal(delisted) {
		t.Errorf("delisting date = %v, want %s", msft.DelistingDate, delisted)
	}
}

func TestGetBarsEmptyIsError(t *testing.T) {
	db := Database{bars: &mockBarsRepository{}}
	if _, err := db.GetBars(time.Time{}, time.Time{}, context.Background()); !errors.Is(err, ErrNoBars) {
		t.Fatalf("GetBars() error = %v, want %v", err, ErrNoBars)
	}
}

func TestGetBarsPropagatesError(t *testing.T) {
	queryErr := errors.New("connection reset")
	db := Database{bars: &mockBarsRepository{err: queryErr}}
	if _, err := db.GetBars(time.Time{}, time.Time{}, context.Background()); !errors.Is(err, queryErr) {
		t.Fatalf("GetBars() error = %v, want %v", err, queryErr)
	}
	if _, err := db.GetHalts(time.Time{}, time.Time{}, context.Background()); !errors.Is(err, queryErr) {
		t.Fatalf("GetHalts() error = %v, want %v", err, queryErr)
	}
}

func TestGetHalts(t *testing.T) {
	mock := &mockBarsRepository{halts: []haltRow{
		{Date: testDate(4), Symbol: "AAPL", IsHalted: true},
		{Date: testDate(5), Symbol: "MSFT", IsHalted: false},
	}}
	db := Database{bars: mock}

	halts, err := db.GetHalts(testDate(1), testDate(31), context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(halts) != 2 {
		t.Fatalf("got %d halts, want 2", len(halts))
	}
	if halts[0].Symbol != "AAPL" || !halts[0].IsHalted || !halts[0].Date.Equal(testDate(4)) {
		t.Errorf("first halt = %+v", halts[0])
	}

	// An empty halts table is not an error, unlike empty bars.
	db = Database{bars: &mockBarsRepository{}}
	halts, err = db.GetHalts(time.Time{}, time.Time{}, context.Background())
	if err != nil || len(halts) != 0 {
		t.Fatalf("empty halts = %v, %v; want none, nil", halts, err)
	}
}

func TestNullableDate(t *testing.T) {
	if got := nullableDate(time.Time{}); got != nil {
		t.Errorf("nullableDate(zero) = %v, want nil", got)
	}
	d := testDate(2)
	got := nullableDate(d)
	if got == nil || !got.Equal(d) {
		t.Errorf("nullableDate(%s) = %v", d, got)
	}
}
