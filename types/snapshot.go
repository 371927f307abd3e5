package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is the end-of-day state of the ledger.
type PortfolioSnapshot struct {
	Date        time.Time
	Cash        decimal.Decimal
	MarketValue decimal.Decimal
	Equity      decimal.Decimal
	// NAV is equity normalized by initial cash; 1 when initial cash is 0.
	NAV           decimal.Decimal
	GrossExposure decimal.Decimal
	NetExposure   decimal.Decimal
}

// MetricsSnapshot is one append-only row of running performance
// statistics, derived purely from the equity history.
type MetricsSnapshot struct {
	Date             time.Time
	DailyReturn      float64
	CumulativeReturn float64
	VolAnnualized    float64
	SharpeITD        float64
	Sharpe30D        float64
	MaxDrawdown      float64
	Drawdown         float64
	RFDaily          float64
}

// PortfolioView is the read-only view of the ledger handed to strategies
// and the risk overlay.
type PortfolioView struct {
	Date      time.Time
	Cash      decimal.Decimal
	Equity    decimal.Decimal
	Positions map[string]PositionView
}

type PositionView struct {
	Symbol   string
	Quantity int64
	AvgCost  decimal.Decimal
}
