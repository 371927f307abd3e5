package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an acquisition tranche of shares. A symbol's position is an
// ordered sequence of lots, oldest first; sells consume the oldest first.
type Lot struct {
	DateAcquired time.Time
	Qty          int64
	FillPrice    decimal.Decimal
}
