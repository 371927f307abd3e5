package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

var UnknownSideErr = errors.New("unknown fill side")

// portfolio is the FIFO lot-based ledger. It owns cash and per-symbol
// lot queues; lots are created by BUY fills and consumed oldest-first
// by SELL fills. Nothing outside this type mutates lots.
type portfolio struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	lots        map[string][]types.Lot
	marketValue decimal.Decimal
	equity      decimal.Decimal
	logger      *slog.Logger
}

func newPortfolio(initialCash decimal.Decimal, logger *slog.Logger) *portfolio {
	return &portfolio{
		initialCash: initialCash,
		cash:        initialCash,
		equity:      initialCash,
		lots:        make(map[string][]types.Lot),
		logger:      logger,
	}
}

// applyFills books a batch of fills. BUY debits qty*price+commission and
// appends a lot; SELL credits qty*price-commission and consumes lots
// FIFO. Cash may go slightly negative from commissions; that is a
// warning condition, not a fatal one.
func (p *portfolio) applyFills(fills []types.Fill) error {
	for _, f := range fills {
		qty := decimal.NewFromInt(f.Qty)
		notional := qty.Mul(f.FillPrice)
		switch f.Side {
		case types.SideTypeBuy:
			p.cash = p.cash.Sub(notional).Sub(f.Commission)
			p.lots[f.Symbol] = append(p.lots[f.Symbol], types.Lot{
				DateAcquired: f.Date,
				Qty:          f.Qty,
				FillPrice:    f.FillPrice,
			})
		case types.SideTypeSell:
			p.cash = p.cash.Add(notional).Sub(f.Commission)
			p.consumeLots(f)
		default:
			return fmt.Errorf("%w: %q", UnknownSideErr, f.Side)
		}
		if p.cash.IsNegative() {
			p.logger.Warn("cash is negative after fill",
				"symbol", f.Symbol, "date", f.Date.Format("2006-01-02"), "cash", p.cash.String())
		}
	}
	return nil
}

// consumeLots removes sold shares from the symbol's lot queue, oldest
// first. A sell beyond the held quantity passes through: the queue is
// emptied and the excess is logged, no negative lots are created.
func (p *portfolio) consumeLots(f types.Fill) {
	remaining := f.Qty
	lots := p.lots[f.Symbol]
	for remaining > 0 && len(lots) > 0 {
		if lots[0].Qty <= remaining {
			remaining -= lots[0].Qty
			lots = lots[1:]
		} else {
			lots[0].Qty -= remaining
			remaining = 0
		}
	}
	if remaining > 0 {
		p.logger.Warn("sell exceeds held lots, passing excess through",
			"symbol", f.Symbol, "date", f.Date.Format("2006-01-02"), "excessQty", remaining)
	}
	if len(lots) == 0 {
		delete(p.lots, f.Symbol)
	} else {
		p.lots[f.Symbol] = lots
	}
}

// markToMarket credits dividends for held positions, then revalues the
// book: market value is the sum of qty*price over held symbols, equity
// is cash plus market value. A symbol missing from prices contributes
// zero market value.
func (p *portfolio) markToMarket(prices, dividends map[string]decimal.Decimal) {
	for symbol := range p.lots {
		if div, ok := dividends[symbol]; ok && !div.IsZero() {
			p.cash = p.cash.Add(div.Mul(decimal.NewFromInt(p.totalShares(symbol))))
		}
	}
	p.marketValue = decimal.Zero
	for symbol := range p.lots {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		p.marketValue = p.marketValue.Add(price.Mul(decimal.NewFromInt(p.totalShares(symbol))))
	}
	p.equity = p.cash.Add(p.marketValue)
}

func (p *portfolio) totalShares(symbol string) int64 {
	var total int64
	for _, lot := range p.lots[symbol] {
		total += lot.Qty
	}
	return total
}

func (p *portfolio) totalSharesMap() map[string]int64 {
	out := make(map[string]int64, len(p.lots))
	for symbol := range p.lots {
		out[symbol] = p.totalShares(symbol)
	}
	return out
}

// averageCost is the quantity-weighted mean lot price for a symbol;
// zero when nothing is held.
func (p *portfolio) averageCost(symbol string) decimal.Decimal {
	lots := p.lots[symbol]
	if len(lots) == 0 {
		return decimal.Zero
	}
	cost := decimal.Zero
	var qty int64
	for _, lot := range lots {
		cost = cost.Add(lot.FillPrice.Mul(decimal.NewFromInt(lot.Qty)))
		qty += lot.Qty
	}
	if qty == 0 {
		return decimal.Zero
	}
	return cost.Div(decimal.NewFromInt(qty))
}

// sellCostBasis replays the FIFO consumption of qty shares without
// mutating the queue and returns the weighted cost of the shares that
// would be consumed. Used to stamp BasePrice on pending SELL orders.
func (p *portfolio) sellCostBasis(symbol string, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	remaining := qty
	cost := decimal.Zero
	var consumed int64
	for _, lot := range p.lots[symbol] {
		if remaining <= 0 {
			break
		}
		take := lot.Qty
		if take > remaining {
			take = remaining
		}
		cost = cost.Add(lot.FillPrice.Mul(decimal.NewFromInt(take)))
		consumed += take
		remaining -= take
	}
	if consumed == 0 {
		return decimal.Zero
	}
	// When fewer shares are held than asked for, the basis is averaged
	// over the shares actually held.
	return cost.Div(decimal.NewFromInt(consumed))
}

func (p *portfolio) snapshot(date time.Time) types.PortfolioSnapshot {
	nav := decimal.NewFromInt(1)
	if !p.initialCash.IsZero() {
		nav = p.equity.Div(p.initialCash)
	}
	return types.PortfolioSnapshot{
		Date:          date,
		Cash:          p.cash,
		MarketValue:   p.marketValue,
		Equity:        p.equity,
		NAV:           nav,
		GrossExposure: p.marketValue,
		NetExposure:   p.marketValue,
	}
}

// view returns the read-only snapshot handed to strategies and the
// risk overlay.
func (p *portfolio) view(date time.Time) types.PortfolioView {
	positions := make(map[string]types.PositionView, len(p.lots))
	for symbol := range p.lots {
		positions[symbol] = types.PositionView{
			Symbol:   symbol,
			Quantity: p.totalShares(symbol),
			AvgCost:  p.averageCost(symbol),
		}
	}
	return types.PortfolioView{
		Date:      date,
		Cash:      p.cash,
		Equity:    p.equity,
		Positions: positions,
	}
}
