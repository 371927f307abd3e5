package repository

import (
	"context"
	"time"

	"backsim/internal/marketdata"
	"backsim/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type barRow struct {
	Date          time.Time        `db:"date"`
	Symbol        string           `db:"symbol"`
	Open          decimal.Decimal  `db:"open"`
	High          decimal.Decimal  `db:"high"`
	Low           decimal.Decimal  `db:"low"`
	Close         decimal.Decimal  `db:"close"`
	AdjustedClose decimal.Decimal  `db:"adjusted_close"`
	Volume        decimal.Decimal  `db:"volume"`
	Dividend      *decimal.Decimal `db:"dividend"`
	DelistingDate *time.Time       `db:"delisting_date"`
}

type haltRow struct {
	Date     time.Time `db:"date"`
	Symbol   string    `db:"symbol"`
	IsHalted bool      `db:"is_halted"`
}

// GetBars retrieves the daily bar panel for [start, end]; a zero bound
// is unbounded on that side.
func (db *Database) GetBars(start, end time.Time, ctx context.Context) ([]types.Bar, error) {
	rows, err := db.bars.GetDailyBars(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoBars
	}
	return convertBars(rows), nil
}

// GetHalts retrieves the halts table for [start, end].
func (db *Database) GetHalts(start, end time.Time, ctx context.Context) ([]marketdata.Halt, error) {
	rows, err := db.bars.GetHalts(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return convertHalts(rows), nil
}

func convertBars(rows []barRow) []types.Bar {
	var bars []types.Bar
	for _, row := range rows {
		bar := types.Bar{
			Date:          row.Date,
			Symbol:        row.Symbol,
			Open:          row.Open,
			High:          row.High,
			Low:           row.Low,
			Close:         row.Close,
			AdjustedClose: row.AdjustedClose,
			Volume:        row.Volume,
			DelistingDate: row.DelistingDate,
		}
		if row.Dividend != nil {
			bar.Dividend = *row.Dividend
		}
		bars = append(bars, bar)
	}
	return bars
}

func convertHalts(rows []haltRow) []marketdata.Halt {
	var halts []marketdata.Halt
	for _, row := range rows {
		halts = append(halts, marketdata.Halt{
			Date:     row.Date,
			Symbol:   row.Symbol,
			IsHalted: row.IsHalted,
		})
	}
	return halts
}

type pgxBarsRepository struct {
	conn *pgxpool.Pool
}

const getDailyBarsSQL = `
SELECT date, symbol, open, high, low, close, adjusted_close, volume, dividend, delisting_date
FROM daily_bars
WHERE ($1::date IS NULL OR date >= $1)
  AND ($2::date IS NULL OR date <= $2)
ORDER BY date, symbol`

const getHaltsSQL = `
SELECT date, symbol, is_halted
FROM halts
WHERE ($1::date IS NULL OR date >= $1)
  AND ($2::date IS NULL OR date <= $2)
ORDER BY date, symbol`

func (r pgxBarsRepository) GetDailyBars(ctx context.Context, start, end time.Time) ([]barRow, error) {
	rows, err := r.conn.Query(ctx, getDailyBarsSQL, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[barRow])
}

func (r pgxBarsRepository) GetHalts(ctx context.Context, start, end time.Time) ([]haltRow, error) {
	rows, err := r.conn.Query(ctx, getHaltsSQL, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[haltRow])
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
