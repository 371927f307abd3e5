package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"backsim/internal/config"
	"backsim/internal/marketdata"
	"backsim/types"

	"github.com/shopspring/decimal"
)

// executionSimulator matches staged orders against one day's bars,
// applying the halt, delisting, participation-cap, limit and slippage
// policies. Orders that cannot fill are dropped with a log line, never
// carried forward.
type executionSimulator struct {
	cfg    config.ExecutionConfig
	store  *marketdata.Store
	logger *slog.Logger
}

func newExecutionSimulator(cfg config.ExecutionConfig, store *marketdata.Store, logger *slog.Logger) *executionSimulator {
	return &executionSimulator{cfg: cfg, store: store, logger: logger}
}

// fillOrders executes a batch of orders against the given day's bars
// and returns the resulting fills in original batch order. A problem
// with one order never aborts the batch.
func (s *executionSimulator) fillOrders(date time.Time, orders []types.Order) []types.Fill {
	var fills []types.Fill
	day := date.Format("2006-01-02")
	for idx, order := range orders {
		if s.cfg.SkipIfHalted && s.store.Halted(date, order.Symbol) {
			s.logger.Warn("symbol halted, dropping order", "symbol", order.Symbol, "date", day)
			continue
		}
		bar, ok := s.store.Bar(date, order.Symbol)
		if !ok {
			s.logger.Warn("bar not found, dropping order", "symbol", order.Symbol, "date", day)
			continue
		}
		if s.cfg.RespectDelisting && bar.DelistingDate != nil && date.After(*bar.DelistingDate) {
			s.logger.Warn("symbol delisted, dropping order", "symbol", order.Symbol, "date", day)
			continue
		}

		adv := s.store.ADV(order.Symbol, date, s.cfg.Slippage.DailyADVLookback)
		qty := s.cappedQty(order, adv)
		if qty <= 0 {
			s.logger.Warn("quantity capped to zero, dropping order", "symbol", order.Symbol, "date", day)
			continue
		}

		var fillPrice, slipPerShare decimal.Decimal
		switch order.OrderType {
		case types.TypeLimit:
			if !limitFillable(order, bar) {
				s.logger.Info("limit price not reached, dropping order",
					"symbol", order.Symbol, "date", day, "limitPrice", order.LimitPrice.String())
				continue
			}
			// Limit orders fill at exactly the limit price, no slippage.
			fillPrice = order.LimitPrice
		default:
			basePrice := s.basePrice(bar)
			slipPerShare = s.slippage(order.Side, order.RefPrice, qty, adv)
			fillPrice = basePrice.Add(slipPerShare)
		}

		basis := order.BasePrice
		if order.Side == types.SideTypeBuy {
			basis = fillPrice
		}
		fills = append(fills, types.Fill{
			OrderID:    fmt.Sprintf("ord_%s_%s_%d", day, order.Symbol, idx),
			Date:       date,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Qty:        qty,
			RefPrice:   order.RefPrice,
			FillPrice:  fillPrice,
			Slippage:   slipPerShare.Mul(decimal.NewFromInt(qty)),
			Commission: s.commission(qty),
			OrderType:  order.OrderType,
			BasePrice:  basis,
		})
	}
	return fills
}

// cappedQty applies the ADV participation cap and the partial-fill
// policy. A non-positive ADV means no cap.
func (s *executionSimulator) cappedQty(order types.Order, adv decimal.Decimal) int64 {
	maxQty := order.Qty
	if adv.IsPositive() {
		maxQty = decimal.NewFromFloat(s.cfg.MaxParticipationADV).Mul(adv).IntPart()
	}
	if s.cfg.AllowPartialFills {
		if order.Qty < maxQty {
			return order.Qty
		}
		return maxQty
	}
	if order.Qty <= maxQty {
		return order.Qty
	}
	return 0
}

// limitFillable reports whether the day's range crossed the limit: a
// BUY fills when the low touched the limit, a SELL when the high did.
func limitFillable(order types.Order, bar types.Bar) bool {
	if order.Side == types.SideTypeBuy {
		return order.LimitPrice.GreaterThanOrEqual(bar.Low)
	}
	return order.LimitPrice.LessThanOrEqual(bar.High)
}

func (s *executionSimulator) basePrice(bar types.Bar) decimal.Decimal {
	switch s.cfg.OrderFillMethod {
	case config.FillNextOpen:
		return bar.Open
	case config.FillVWAPProxy:
		return bar.TypicalPrice()
	default:
		return bar.Close
	}
}

// slippage returns the per-share slippage, signed +1 for BUY and -1
// for SELL.
func (s *executionSimulator) slippage(side types.Side, refPrice decimal.Decimal, qty int64, adv decimal.Decimal) decimal.Decimal {
	sign := decimal.NewFromInt(1)
	if side == types.SideTypeSell {
		sign = decimal.NewFromInt(-1)
	}
	switch s.cfg.Slippage.Type {
	case config.SlippageSquareRootImpact:
		if !adv.IsPositive() {
			s.logger.Warn("ADV is not positive, using zero slippage")
			return decimal.Zero
		}
		impact := s.cfg.Slippage.K * refPrice.InexactFloat64() *
			math.Sqrt(float64(qty)/adv.InexactFloat64())
		return sign.Mul(decimal.NewFromFloat(impact))
	default: // bps_per_turnover
		bps := decimal.NewFromFloat(s.cfg.Slippage.BpsPer1xTurnover)
		return sign.Mul(bps.Div(decimal.NewFromInt(10_000)).Mul(refPrice))
	}
}

// commission is max(perShare*qty, minPerOrder).
func (s *executionSimulator) commission(qty int64) decimal.Decimal {
	fee := decimal.NewFromFloat(s.cfg.Commission.PerShare).Mul(decimal.NewFromInt(qty))
	return decimal.Max(fee, decimal.NewFromFloat(s.cfg.Commission.MinPerOrder))
}
