package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingColumn = errors.New("market data missing column")
	ErrEmptyFile     = errors.New("market data file is empty")
)

var requiredBarColumns = []string{"date", "symbol", "open", "high", "low", "close", "adjusted_close", "volume"}

const csvDateLayout = "2006-01-02"

// LoadBarsCSV reads a daily bar panel from a CSV file with columns
// date, symbol, open, high, low, close, adjusted_close, volume and the
// optional columns dividend and delisting_date.
func LoadBarsCSV(path string) ([]types.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market data: %w", err)
	}
	defer f.Close()
	return readBars(f)
}

func readBars(r io.Reader) ([]types.Bar, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnIndex(header)
	for _, c := range requiredBarColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var bars []types.Bar
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		bar, err := parseBar(record, cols)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(record []string, cols map[string]int) (types.Bar, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	date, err := time.Parse(csvDateLayout, get("date"))
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse date %q: %w", get("date"), err)
	}
	bar := types.Bar{Date: date, Symbol: get("symbol")}

	fields := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"adjusted_close", &bar.AdjustedClose},
		{"volume", &bar.Volume},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(get(f.name))
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse %s %q for %s: %w", f.name, get(f.name), bar.Symbol, err)
		}
		*f.dst = d
	}

	if v := get("dividend"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse dividend %q for %s: %w", v, bar.Symbol, err)
		}
		bar.Dividend = d
	}
	if v := get("delisting_date"); v != "" {
		d, err := time.Parse(csvDateLayout, v)
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse delisting_date %q for %s: %w", v, bar.Symbol, err)
		}
		bar.DelistingDate = &d
	}
	return bar, nil
}

// LoadHaltsCSV reads a halts table from a CSV file with columns
// date, symbol, is_halted.
func LoadHaltsCSV(path string) ([]Halt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open halts data: %w", err)
	}
	defer f.Close()
	return readHalts(f)
}

func readHalts(r io.Reader) ([]Halt, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil // an empty halts file means no halts
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := columnIndex(header)
	for _, c := range []string{"date", "symbol", "is_halted"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	var halts []Halt
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		date, err := time.Parse(csvDateLayout, record[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", record[cols["date"]], err)
		}
		halted, err := strconv.ParseBool(record[cols["is_halted"]])
		if err != nil {
			return nil, fmt.Errorf("parse is_halted %q: %w", record[cols["is_halted"]], err)
		}
		halts = append(halts, Halt{Date: date, Symbol: record[cols["symbol"]], IsHalted: halted})
	}
	return halts, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	return cols
}
