package engine

import (
	"log/slog"
	"math"
	"time"

	"backsim/internal/config"
	"backsim/types"

	"github.com/shopspring/decimal"
)

// riskOverlay evaluates stop-loss and take-profit rules against held
// positions and emits a capped target for every triggered symbol. The
// caps are combined with signal targets by per-symbol minimum, so the
// overlay can only tighten a position, never loosen it.
type riskOverlay struct {
	cfg    config.RiskConfig
	logger *slog.Logger
}

func newRiskOverlay(cfg config.RiskConfig, logger *slog.Logger) *riskOverlay {
	return &riskOverlay{cfg: cfg, logger: logger}
}

// evaluate returns the risk-capped target shares for symbols whose
// rules triggered today. Untriggered symbols are absent. For long
// positions the stop-loss check uses the day's low and the take-profit
// check the day's high when intraday extremes are supplied, otherwise
// both use the valuation price. Stop-loss is checked first.
func (r *riskOverlay) evaluate(
	date time.Time,
	view types.PortfolioView,
	valuation map[string]decimal.Decimal,
	highs map[string]decimal.Decimal,
	lows map[string]decimal.Decimal,
) map[string]int64 {
	if !r.cfg.Enabled {
		return nil
	}
	targets := make(map[string]int64)
	for symbol, pos := range view.Positions {
		if pos.Quantity == 0 || !pos.AvgCost.IsPositive() {
			continue
		}
		avgCost := pos.AvgCost.InexactFloat64()
		price := valuation[symbol].InexactFloat64()
		slPrice, tpPrice := price, price
		if r.cfg.UseIntradayExtremes && highs != nil && lows != nil {
			if low, ok := lows[symbol]; ok {
				slPrice = low.InexactFloat64()
			}
			if high, ok := highs[symbol]; ok {
				tpPrice = high.InexactFloat64()
			}
		}

		retSL := slPrice/avgCost - 1
		retTP := tpPrice/avgCost - 1

		var reason string
		switch {
		case r.cfg.StopLoss != nil && retSL <= -*r.cfg.StopLoss:
			reason = "STOP_LOSS"
		case r.cfg.TakeProfit != nil && retTP >= *r.cfg.TakeProfit:
			reason = "TAKE_PROFIT"
		default:
			continue
		}

		targets[symbol] = r.applyAction(pos.Quantity)
		r.logger.Info("risk trigger",
			"date", date.Format("2006-01-02"), "symbol", symbol, "reason", reason,
			"action", r.cfg.Action, "targetQty", targets[symbol])
	}
	return targets
}

func (r *riskOverlay) applyAction(qty int64) int64 {
	switch r.cfg.Action {
	case config.RiskActionReduce:
		target := int64(math.Round(float64(qty) * (1 - r.cfg.ReduceFraction)))
		if target < 0 {
			target = 0
		}
		return target
	case config.RiskActionNone:
		return qty
	case config.RiskActionLiquidate:
		return 0
	default:
		r.logger.Error("unknown risk action, liquidating", "action", r.cfg.Action)
		return 0
	}
}

// capTargets applies the overlay's caps to the signal-driven targets.
func capTargets(signal map[string]int64, risk map[string]int64) map[string]int64 {
	if len(risk) == 0 {
		return signal
	}
	out := make(map[string]int64, len(signal))
	for symbol, qty := range signal {
		if capped, ok := risk[symbol]; ok && capped < qty {
			qty = capped
		}
		out[symbol] = qty
	}
	return out
}
