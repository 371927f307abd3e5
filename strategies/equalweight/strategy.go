// Package equalweight holds an equal-weighted liquidity strategy: each
// day it keeps the symbols trading above the day's median volume, takes
// the first maxSymbols of them, and splits the book evenly across them
// with market orders.
package equalweight

import (
	"sort"
	"time"

	"backsim/types"
)

type Strategy struct {
	maxSymbols int
}

func New(maxSymbols int) *Strategy {
	return &Strategy{maxSymbols: maxSymbols}
}

func (s *Strategy) OnDay(date time.Time, today []types.Bar, history []types.Bar, portfolio types.PortfolioView) (map[string]float64, map[string]types.OrderSpec) {
	if len(today) == 0 {
		return nil, nil
	}

	volumes := make([]float64, 0, len(today))
	for _, bar := range today {
		volumes = append(volumes, bar.Volume.InexactFloat64())
	}
	median := medianOf(volumes)

	var picks []string
	for _, bar := range today {
		if bar.Volume.InexactFloat64() > median {
			picks = append(picks, bar.Symbol)
		}
	}
	sort.Strings(picks)
	if s.maxSymbols > 0 && len(picks) > s.maxSymbols {
		picks = picks[:s.maxSymbols]
	}
	if len(picks) == 0 {
		return nil, nil
	}

	w := 1.0 / float64(len(picks))
	weights := make(map[string]float64, len(picks))
	for _, symbol := range picks {
		weights[symbol] = w
	}
	return weights, nil
}

func medianOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
