// Package limitorder holds a liquidity strategy that enters new
// positions with patient limit orders: it equal-weights the top
// maxSymbols symbols by volume, bidding a discount below the close for
// symbols it does not yet hold and rebalancing held ones at market.
package limitorder

import (
	"sort"
	"time"

	"backsim/types"

	"github.com/shopspring/decimal"
)

type Strategy struct {
	maxSymbols int
	// discount is the fraction below the close for new-position bids,
	// e.g. 0.02 bids 2% below.
	discount decimal.Decimal
}

func New(maxSymbols int, discount float64) *Strategy {
	return &Strategy{
		maxSymbols: maxSymbols,
		discount:   decimal.NewFromFloat(discount),
	}
}

func (s *Strategy) OnDay(date time.Time, today []types.Bar, history []types.Bar, portfolio types.PortfolioView) (map[string]float64, map[string]types.OrderSpec) {
	if len(today) == 0 {
		return nil, nil
	}

	picks := append([]types.Bar(nil), today...)
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].Volume.GreaterThan(picks[j].Volume)
	})
	if s.maxSymbols > 0 && len(picks) > s.maxSymbols {
		picks = picks[:s.maxSymbols]
	}

	w := 1.0 / float64(len(picks))
	weights := make(map[string]float64, len(picks))
	specs := make(map[string]types.OrderSpec, len(picks))
	one := decimal.NewFromInt(1)
	for _, bar := range picks {
		weights[bar.Symbol] = w
		if pos, held := portfolio.Positions[bar.Symbol]; held && pos.Quantity != 0 {
			specs[bar.Symbol] = types.OrderSpec{OrderType: types.TypeMarket}
			continue
		}
		specs[bar.Symbol] = types.OrderSpec{
			OrderType:  types.TypeLimit,
			LimitPrice: bar.Close.Mul(one.Sub(s.discount)),
		}
	}
	return weights, specs
}
