package engine

import (
	"log/slog"
	"sort"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

// orderGenerator converts target weights into target share counts and
// diffs them against current holdings to produce orders.
type orderGenerator struct {
	allowShort bool
	logger     *slog.Logger
}

func newOrderGenerator(allowShort bool, logger *slog.Logger) *orderGenerator {
	return &orderGenerator{allowShort: allowShort, logger: logger}
}

// weightsToTargetShares sizes each weight against available equity:
// shares = floor(weight*equity / price). If the aggregate notional
// exceeds equity, all counts are scaled down by equity/notional and
// re-floored, so total notional never exceeds equity. Zero or negative
// results are dropped.
func (g *orderGenerator) weightsToTargetShares(
	weights map[string]float64,
	equity decimal.Decimal,
	prices map[string]decimal.Decimal,
) map[string]int64 {
	shares := make(map[string]int64, len(weights))
	for symbol, weight := range weights {
		price, ok := prices[symbol]
		if !ok || !price.IsPositive() {
			g.logger.Warn("no positive price for symbol, sizing to zero shares", "symbol", symbol)
			shares[symbol] = 0
			continue
		}
		money := decimal.NewFromFloat(weight).Mul(equity)
		shares[symbol] = money.Div(price).IntPart()
	}

	notional := decimal.Zero
	for symbol, qty := range shares {
		if price, ok := prices[symbol]; ok {
			notional = notional.Add(price.Mul(decimal.NewFromInt(qty)))
		}
	}
	if notional.GreaterThan(equity) && notional.IsPositive() {
		scale := equity.Div(notional)
		for symbol, qty := range shares {
			shares[symbol] = decimal.NewFromInt(qty).Mul(scale).IntPart()
		}
	}

	for symbol, qty := range shares {
		if qty <= 0 {
			delete(shares, symbol)
		}
	}
	return shares
}

// diffToOrders walks the sorted union of current and target symbols and
// emits one order per nonzero delta. Order types and limit prices come
// from the optional per-symbol specs (market by default); SELL orders
// get their FIFO cost basis stamped for later P&L reporting.
func (g *orderGenerator) diffToOrders(
	execDate time.Time,
	current map[string]int64,
	target map[string]int64,
	refPrices map[string]decimal.Decimal,
	specs map[string]types.OrderSpec,
	pf *portfolio,
) []types.Order {
	symbols := make(map[string]struct{}, len(current)+len(target))
	for s := range current {
		symbols[s] = struct{}{}
	}
	for s := range target {
		symbols[s] = struct{}{}
	}
	ordered := make([]string, 0, len(symbols))
	for s := range symbols {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	var orders []types.Order
	for _, symbol := range ordered {
		delta := target[symbol] - current[symbol]
		if delta == 0 {
			continue
		}
		side := types.SideTypeBuy
		qty := delta
		if delta < 0 {
			side = types.SideTypeSell
			qty = -delta
		}

		order := types.Order{
			Date:      execDate,
			Symbol:    symbol,
			Side:      side,
			Qty:       qty,
			RefPrice:  refPrices[symbol],
			OrderType: types.TypeMarket,
		}
		if spec, ok := specs[symbol]; ok && spec.OrderType != "" {
			order.OrderType = spec.OrderType
			order.LimitPrice = spec.LimitPrice
		}
		if side == types.SideTypeSell && pf != nil {
			order.BasePrice = pf.sellCostBasis(symbol, qty)
		}
		orders = append(orders, order)
	}
	return orders
}
