package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a single staged instruction to trade on its Date.
// Orders are consumed exactly once: an order that cannot fill on its
// target day is discarded, never carried forward.
type Order struct {
	Date      time.Time
	Symbol    string
	Side      Side
	Qty       int64
	RefPrice  decimal.Decimal
	OrderType OrderType
	// LimitPrice is only meaningful when OrderType is TypeLimit.
	LimitPrice decimal.Decimal
	// BasePrice on a SELL records the FIFO cost basis of the shares it
	// intends to sell, computed when the order is staged. On a BUY it
	// stays zero until fill time (the fill price becomes the basis).
	BasePrice decimal.Decimal
}

// OrderSpec is a per-symbol order hint returned by a strategy alongside
// its target weights. The zero value means a plain market order.
type OrderSpec struct {
	OrderType  OrderType
	LimitPrice decimal.Decimal
}

// Fill is the immutable result of executing an order against a bar.
type Fill struct {
	OrderID   string
	Date      time.Time
	Symbol    string
	Side      Side
	Qty       int64
	RefPrice  decimal.Decimal
	FillPrice decimal.Decimal
	// Slippage is the total slippage cost for the fill (per-share
	// slippage times quantity), signed from the taker's perspective.
	Slippage   decimal.Decimal
	Commission decimal.Decimal
	OrderType  OrderType
	BasePrice  decimal.Decimal
}

// Notional is quantity times fill price.
func (f Fill) Notional() decimal.Decimal {
	return f.FillPrice.Mul(decimal.NewFromInt(f.Qty))
}
