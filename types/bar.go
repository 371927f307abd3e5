package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily OHLCV record for a symbol.
type Bar struct {
	Date          time.Time       `json:"date"`
	Symbol        string          `json:"symbol"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjustedClose"`
	Volume        decimal.Decimal `json:"volume"`
	Dividend      decimal.Decimal `json:"dividend"`
	// DelistingDate is the last tradable date for the symbol, if known.
	DelistingDate *time.Time `json:"delistingDate,omitempty"`
}

// TypicalPrice is the (high+low+close)/3 vwap proxy for the bar.
func (b Bar) TypicalPrice() decimal.Decimal {
	three := decimal.NewFromInt(3)
	return b.High.Add(b.Low).Add(b.Close).Div(three)
}
