package engine

import (
	"log/slog"
	"math"
	"time"

	"backsim/internal/config"
	"backsim/types"

	"github.com/shopspring/decimal"
)

const (
	tradingDaysPerYear = 252
	rollingSharpeDays  = 30
)

// metricsEngine maintains the append-only equity and return history and
// derives the running performance statistics. Statistics are computed
// in float64; equity arrives as decimal from the ledger.
type metricsEngine struct {
	rfDaily  float64
	equities []float64
	returns  []float64
}

func newMetricsEngine(cfg config.AccountingConfig, logger *slog.Logger) *metricsEngine {
	rfDaily := 0.0
	if cfg.RiskFreeRate.Mode == "constant" {
		rfDaily = annualToDailyRate(cfg.RiskFreeRate.ConstantAnnual)
	} else {
		logger.Warn("unsupported risk-free rate mode, using 0", "mode", cfg.RiskFreeRate.Mode)
	}
	return &metricsEngine{rfDaily: rfDaily}
}

// annualToDailyRate converts an annual rate to its daily equivalent,
// (1+annual)^(1/252) - 1.
func annualToDailyRate(annual float64) float64 {
	return math.Pow(1+annual, 1.0/tradingDaysPerYear) - 1
}

// update appends one day of equity and returns the derived snapshot.
func (m *metricsEngine) update(date time.Time, equity decimal.Decimal) types.MetricsSnapshot {
	eq := equity.InexactFloat64()

	r := 0.0
	if n := len(m.equities); n > 0 && m.equities[n-1] > 0 {
		r = eq/m.equities[n-1] - 1
	}
	m.equities = append(m.equities, eq)
	m.returns = append(m.returns, r)

	excess := make([]float64, len(m.returns))
	for i, ret := range m.returns {
		excess[i] = ret - m.rfDaily
	}

	vol := 0.0
	if len(m.returns) > 1 {
		vol = sampleStd(m.returns) * math.Sqrt(tradingDaysPerYear)
	}

	snapshot := types.MetricsSnapshot{
		Date:          date,
		DailyReturn:   r,
		VolAnnualized: vol,
		SharpeITD:     annualizedSharpe(excess),
		RFDaily:       m.rfDaily,
	}
	if len(excess) >= 2 {
		window := excess
		if len(window) > rollingSharpeDays {
			window = window[len(window)-rollingSharpeDays:]
		}
		snapshot.Sharpe30D = annualizedSharpe(window)
	}

	peak := 0.0
	maxDD := 0.0
	for _, e := range m.equities {
		if e > peak {
			peak = e
		}
		dd := drawdownFrom(e, peak)
		if dd < maxDD {
			maxDD = dd
		}
	}
	snapshot.Drawdown = drawdownFrom(eq, peak)
	snapshot.MaxDrawdown = maxDD

	if first := m.equities[0]; first != 0 {
		snapshot.CumulativeReturn = eq/first - 1
	}
	return snapshot
}

func drawdownFrom(equity, peak float64) float64 {
	if peak == 0 {
		return equity - 1
	}
	return equity/peak - 1
}

// annualizedSharpe is mean/stdev * sqrt(252) over excess returns, with
// the denominator floored to 1.0 when the sample stdev is exactly zero.
func annualizedSharpe(excess []float64) float64 {
	if len(excess) < 2 {
		return 0
	}
	std := sampleStd(excess)
	if std == 0 {
		std = 1.0
	}
	return mean(excess) / std * math.Sqrt(tradingDaysPerYear)
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the ddof=1 standard deviation.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	varianceSum := 0.0
	for _, x := range xs {
		diff := x - mu
		varianceSum += diff * diff
	}
	return math.Sqrt(varianceSum / float64(len(xs)-1))
}
