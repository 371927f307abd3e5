package engine

import (
	"context"
	"time"

	"backsim/internal/marketdata"
	"backsim/types"
)

// Strategy produces target weights and per-symbol order hints for one
// trading day. It is invoked exactly once per day, after that day's
// fills and mark-to-market, and may only look at today's slice and the
// history handed to it — both contain no bar dated after the day being
// processed. The portfolio view is read-only.
type Strategy interface {
	OnDay(date time.Time, today []types.Bar, history []types.Bar, portfolio types.PortfolioView) (map[string]float64, map[string]types.OrderSpec)
}

// Reporter receives one day of simulation output at a time and owns all
// persistence and formatting. The engine never writes files itself.
type Reporter interface {
	AddDay(date time.Time, fills []types.Fill, snapshot types.PortfolioSnapshot, view types.PortfolioView, metrics types.MetricsSnapshot)
	Finalize() error
}

type dataStore interface {
	GetBars(start, end time.Time, ctx context.Context) ([]types.Bar, error)
	GetHalts(start, end time.Time, ctx context.Context) ([]marketdata.Halt, error)
}
