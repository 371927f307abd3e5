package engine

import (
	"strings"
	"testing"
	"time"

	"backsim/internal/config"
	"backsim/internal/marketdata"
	"backsim/types"
)

func execConfig() config.ExecutionConfig {
	cfg := config.Default().Execution
	cfg.Slippage.BpsPer1xTurnover = 0
	return cfg
}

func testBar(date time.Time, symbol string, open, high, low, close, volume string) types.Bar {
	return types.Bar{
		Date:          date,
		Symbol:        symbol,
		Open:          dec(open),
		High:          dec(high),
		Low:           dec(low),
		Close:         dec(close),
		AdjustedClose: dec(close),
		Volume:        dec(volume),
	}
}

// twoDayStore holds one history day (Jan 2) and one execution day
// (Jan 3) for AAPL, so ADV on Jan 3 is exactly the Jan 2 volume.
func twoDayStore(histVolume string) *marketdata.Store {
	return marketdata.NewStore([]types.Bar{
		testBar(day(2), "AAPL", "99", "101", "98", "100", histVolume),
		testBar(day(3), "AAPL", "100", "104", "97", "102", "1200"),
	}, nil)
}

func marketOrder(symbol string, side types.Side, qty int64, refPrice string) types.Order {
	return types.Order{
		Date:      day(3),
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		RefPrice:  dec(refPrice),
		OrderType: types.TypeMarket,
	}
}

func TestFillOrdersParticipationCap(t *testing.T) {
	tests := []struct {
		name         string
		allowPartial bool
		qty          int64
		wantQty      int64 // 0 means dropped
	}{
		{name: "over cap without partials drops", allowPartial: false, qty: 150, wantQty: 0},
		{name: "under cap without partials fills full", allowPartial: false, qty: 90, wantQty: 90},
		{name: "at cap without partials fills full", allowPartial: false, qty: 100, wantQty: 100},
		{name: "over cap with partials fills capped", allowPartial: true, qty: 150, wantQty: 100},
		{name: "under cap with partials fills full", allowPartial: true, qty: 90, wantQty: 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := execConfig()
			cfg.MaxParticipationADV = 0.1
			cfg.AllowPartialFills = tt.allowPartial
			sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())

			fills := sim.fillOrders(day(3), []types.Order{
				marketOrder("AAPL", types.SideTypeBuy, tt.qty, "100"),
			})
			if tt.wantQty == 0 {
				if len(fills) != 0 {
					t.Fatalf("got %d fills, want dropped order", len(fills))
				}
				return
			}
			if len(fills) != 1 {
				t.Fatalf("got %d fills, want 1", len(fills))
			}
			if fills[0].Qty != tt.wantQty {
				t.Errorf("fill qty = %d, want %d", fills[0].Qty, tt.wantQty)
			}
		})
	}
}

func TestFillOrdersNoADVMeansNoCap(t *testing.T) {
	cfg := execConfig()
	cfg.MaxParticipationADV = 0.1
	// No bars before Jan 3, so ADV is zero and the cap does not apply.
	store := marketdata.NewStore([]types.Bar{
		testBar(day(3), "AAPL", "100", "104", "97", "102", "1200"),
	}, nil)
	sim := newExecutionSimulator(cfg, store, testLogger())

	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 5000, "100"),
	})
	if len(fills) != 1 || fills[0].Qty != 5000 {
		t.Fatalf("fills = %+v, want one full fill of 5000", fills)
	}
}

func TestFillOrdersLimit(t *testing.T) {
	tests := []struct {
		name      string
		side      types.Side
		limit     string
		wantFill  bool
		wantPrice string
	}{
		// Day range on Jan 3 is low 97, high 104.
		{name: "buy limit at exact low fills", side: types.SideTypeBuy, limit: "97", wantFill: true, wantPrice: "97"},
		{name: "buy limit above low fills at limit", side: types.SideTypeBuy, limit: "99.50", wantFill: true, wantPrice: "99.50"},
		{name: "buy limit below low drops", side: types.SideTypeBuy, limit: "96.99", wantFill: false},
		{name: "sell limit at exact high fills", side: types.SideTypeSell, limit: "104", wantFill: true, wantPrice: "104"},
		{name: "sell limit above high drops", side: types.SideTypeSell, limit: "104.01", wantFill: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := execConfig()
			cfg.Slippage.BpsPer1xTurnover = 25 // must not apply to limit fills
			sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())

			order := marketOrder("AAPL", tt.side, 10, "100")
			order.OrderType = types.TypeLimit
			order.LimitPrice = dec(tt.limit)

			fills := sim.fillOrders(day(3), []types.Order{order})
			if !tt.wantFill {
				if len(fills) != 0 {
					t.Fatalf("got %d fills, want dropped order", len(fills))
				}
				return
			}
			if len(fills) != 1 {
				t.Fatalf("got %d fills, want 1", len(fills))
			}
			if !fills[0].FillPrice.Equal(dec(tt.wantPrice)) {
				t.Errorf("fill price = %s, want %s", fills[0].FillPrice, tt.wantPrice)
			}
			if !fills[0].Slippage.IsZero() {
				t.Errorf("limit fill slippage = %s, want 0", fills[0].Slippage)
			}
		})
	}
}

func TestFillOrdersFillMethods(t *testing.T) {
	tests := []struct {
		method    string
		wantPrice string
	}{
		{method: config.FillNextOpen, wantPrice: "100"},
		{method: config.FillNextClose, wantPrice: "102"},
		// (104 + 97 + 102) / 3
		{method: config.FillVWAPProxy, wantPrice: "101"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			cfg := execConfig()
			cfg.OrderFillMethod = tt.method
			sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())

			fills := sim.fillOrders(day(3), []types.Order{
				marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
			})
			if len(fills) != 1 {
				t.Fatalf("got %d fills, want 1", len(fills))
			}
			if !fills[0].FillPrice.Equal(dec(tt.wantPrice)) {
				t.Errorf("fill price = %s, want %s", fills[0].FillPrice, tt.wantPrice)
			}
		})
	}
}

func TestFillOrdersBpsSlippage(t *testing.T) {
	cfg := execConfig()
	cfg.Slippage.BpsPer1xTurnover = 10 // 10bps of the 100 ref price = 0.10/share

	sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())
	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
		marketOrder("AAPL", types.SideTypeSell, 10, "100"),
	})
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}

	// next_close base 102: BUY pays up, SELL gives up.
	if !fills[0].FillPrice.Equal(dec("102.10")) {
		t.Errorf("buy fill price = %s, want 102.10", fills[0].FillPrice)
	}
	if !fills[1].FillPrice.Equal(dec("101.90")) {
		t.Errorf("sell fill price = %s, want 101.90", fills[1].FillPrice)
	}
	// Fill slippage is the total across shares.
	if !fills[0].Slippage.Equal(dec("1.00")) {
		t.Errorf("buy slippage = %s, want 1.00", fills[0].Slippage)
	}
	if !fills[1].Slippage.Equal(dec("-1.00")) {
		t.Errorf("sell slippage = %s, want -1.00", fills[1].Slippage)
	}
}

func TestFillOrdersSquareRootSlippage(t *testing.T) {
	cfg := execConfig()
	cfg.Slippage.Type = config.SlippageSquareRootImpact
	cfg.Slippage.K = 0.1

	// ADV 1000, qty 250: impact = 0.1 * 100 * sqrt(250/1000) = 5.
	sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())
	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 250, "100"),
	})
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !fills[0].FillPrice.Equal(dec("107")) {
		t.Errorf("fill price = %s, want 107", fills[0].FillPrice)
	}

	// No ADV history: square-root impact degrades to zero slippage.
	store := marketdata.NewStore([]types.Bar{
		testBar(day(3), "AAPL", "100", "104", "97", "102", "1200"),
	}, nil)
	sim = newExecutionSimulator(cfg, store, testLogger())
	fills = sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 250, "100"),
	})
	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	if !fills[0].FillPrice.Equal(dec("102")) {
		t.Errorf("fill price = %s, want base 102 with zero slippage", fills[0].FillPrice)
	}
}

func TestFillOrdersCommission(t *testing.T) {
	cfg := execConfig()
	cfg.Commission.PerShare = 0.01
	cfg.Commission.MinPerOrder = 1.00
	sim := newExecutionSimulator(cfg, twoDayStore("1000"), testLogger())

	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),  // 0.10 < min
		marketOrder("AAPL", types.SideTypeBuy, 500, "100"), // 5.00 > min
	})
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if !fills[0].Commission.Equal(dec("1.00")) {
		t.Errorf("small order commission = %s, want min 1.00", fills[0].Commission)
	}
	if !fills[1].Commission.Equal(dec("5.00")) {
		t.Errorf("large order commission = %s, want 5.00", fills[1].Commission)
	}
}

func TestFillOrdersHaltedSymbolDropped(t *testing.T) {
	store := marketdata.NewStore([]types.Bar{
		testBar(day(2), "AAPL", "99", "101", "98", "100", "1000"),
		testBar(day(3), "AAPL", "100", "104", "97", "102", "1200"),
	}, []marketdata.Halt{{Date: day(3), Symbol: "AAPL", IsHalted: true}})
	sim := newExecutionSimulator(execConfig(), store, testLogger())

	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
	})
	if len(fills) != 0 {
		t.Fatalf("got %d fills, want halted order dropped", len(fills))
	}

	cfg := execConfig()
	cfg.SkipIfHalted = false
	sim = newExecutionSimulator(cfg, store, testLogger())
	if fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
	}); len(fills) != 1 {
		t.Fatalf("got %d fills, want 1 with halt checks disabled", len(fills))
	}
}

func TestFillOrdersDelistedSymbolDropped(t *testing.T) {
	delisted := day(2)
	bar := testBar(day(3), "AAPL", "100", "104", "97", "102", "1200")
	bar.DelistingDate = &delisted
	store := marketdata.NewStore([]types.Bar{bar}, nil)
	sim := newExecutionSimulator(execConfig(), store, testLogger())

	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
	})
	if len(fills) != 0 {
		t.Fatalf("got %d fills, want delisted order dropped", len(fills))
	}
}

func TestFillOrdersMissingBarDropped(t *testing.T) {
	sim := newExecutionSimulator(execConfig(), twoDayStore("1000"), testLogger())
	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("MSFT", types.SideTypeBuy, 10, "100"),
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
	})
	if len(fills) != 1 || fills[0].Symbol != "AAPL" {
		t.Fatalf("fills = %+v, want MSFT dropped and AAPL filled", fills)
	}
}

func TestFillOrdersIDsAreDeterministic(t *testing.T) {
	sim := newExecutionSimulator(execConfig(), twoDayStore("1000"), testLogger())
	orders := []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
		marketOrder("AAPL", types.SideTypeSell, 5, "100"),
	}

	first := sim.fillOrders(day(3), orders)
	second := sim.fillOrders(day(3), orders)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("got %d and %d fills, want 2 each", len(first), len(second))
	}
	for i := range first {
		if first[i].OrderID != second[i].OrderID {
			t.Errorf("order ID changed between runs: %s vs %s", first[i].OrderID, second[i].OrderID)
		}
		if !strings.HasPrefix(first[i].OrderID, "ord_2023-01-03_AAPL_") {
			t.Errorf("unexpected order ID format: %s", first[i].OrderID)
		}
	}
	if first[0].OrderID == first[1].OrderID {
		t.Errorf("duplicate order ID within batch: %s", first[0].OrderID)
	}
}

func TestFillOrdersBuyBasePriceIsFillPrice(t *testing.T) {
	sim := newExecutionSimulator(execConfig(), twoDayStore("1000"), testLogger())

	sell := marketOrder("AAPL", types.SideTypeSell, 10, "100")
	sell.BasePrice = dec("95") // FIFO basis stamped at order generation
	fills := sim.fillOrders(day(3), []types.Order{
		marketOrder("AAPL", types.SideTypeBuy, 10, "100"),
		sell,
	})
	if len(fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(fills))
	}
	if !fills[0].BasePrice.Equal(fills[0].FillPrice) {
		t.Errorf("buy base price = %s, want fill price %s", fills[0].BasePrice, fills[0].FillPrice)
	}
	if !fills[1].BasePrice.Equal(dec("95")) {
		t.Errorf("sell base price = %s, want 95", fills[1].BasePrice)
	}
}
