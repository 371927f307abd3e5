package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backsim/internal/config"
	"backsim/internal/marketdata"
	"backsim/types"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

var (
	ErrNotEnoughDays  = errors.New("not enough trading days to run backtest")
	ErrMissingNextDay = errors.New("next trading day has no data")
)

// backtester sequences one trading day at a time: orders staged while
// processing day t execute against day t+1's bar. No component reads
// market data dated after the day currently being processed when
// making decisions; only the staging step prices against t+1.
type backtester struct {
	cfg       config.Config
	store     *marketdata.Store
	strategy  Strategy
	reporter  Reporter
	portfolio *portfolio
	orderGen  *orderGenerator
	execSim   *executionSimulator
	risk      *riskOverlay
	metrics   *metricsEngine
	logger    *slog.Logger

	pending  []types.Order
	progress bool
}

func newBacktester(cfg config.Config, store *marketdata.Store, strat Strategy, reporter Reporter, logger *slog.Logger) *backtester {
	return &backtester{
		cfg:       cfg,
		store:     store,
		strategy:  strat,
		reporter:  reporter,
		portfolio: newPortfolio(cfg.InitialCash(), logger),
		orderGen:  newOrderGenerator(cfg.Portfolio.AllowShort, logger),
		execSim:   newExecutionSimulator(cfg.Execution, store, logger),
		risk:      newRiskOverlay(cfg.Risk, logger),
		metrics:   newMetricsEngine(cfg.Accounting, logger),
		logger:    logger,
	}
}

func (b *backtester) run() error {
	start, err := b.cfg.StartDate()
	if err != nil {
		return err
	}
	end, err := b.cfg.EndDate()
	if err != nil {
		return err
	}
	days := b.store.DatesBetween(start, end)
	if len(days) < 2 {
		return ErrNotEnoughDays
	}

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = initProgressBar(len(days))
	}
	for i, t0 := range days {
		var t1 time.Time
		if i+1 < len(days) {
			t1 = days[i+1]
		}
		if err := b.runDay(t0, t1); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	return b.reporter.Finalize()
}

// runDay processes one trading day. t1 is the next trading day of the
// run, or the zero time on the final day.
func (b *backtester) runDay(t0, t1 time.Time) error {
	slice := b.store.Slice(t0)
	if len(slice) == 0 {
		b.logger.Warn("no data for trading day, skipping", "date", t0.Format("2006-01-02"))
		return nil
	}

	// 1) Execute orders staged from the previous day on today's market.
	fills := b.execSim.fillOrders(t0, b.pending)
	b.pending = nil
	if err := b.portfolio.applyFills(fills); err != nil {
		return err
	}

	// 2) Mark to market with today's prices and record the day.
	prices, dividends := b.store.MarkingSeries(t0, b.cfg.Run.ValuationPrice)
	b.portfolio.markToMarket(prices, dividends)
	metrics := b.metrics.update(t0, b.portfolio.equity)
	b.reporter.AddDay(t0, fills, b.portfolio.snapshot(t0), b.portfolio.view(t0), metrics)

	// 3) Let the strategy observe data up to and including today.
	weights, specs := b.strategy.OnDay(t0, slice, b.store.History(t0), b.portfolio.view(t0))

	if t1.IsZero() {
		b.logger.Info("no next trading day, ending run loop", "date", t0.Format("2006-01-02"))
		return nil
	}

	refPrices, err := b.nextDayRefPrices(t0, t1)
	if err != nil {
		return err
	}

	// 4) Size targets, apply the risk overlay, stage tomorrow's orders.
	targets := b.orderGen.weightsToTargetShares(weights, b.portfolio.equity, refPrices)
	highs, lows := b.intradayExtremes(slice)
	targets = capTargets(targets, b.risk.evaluate(t0, b.portfolio.view(t0), prices, highs, lows))

	b.pending = b.orderGen.diffToOrders(t1, b.portfolio.totalSharesMap(), targets, refPrices, specs, b.portfolio)
	if len(b.pending) > 0 {
		b.logger.Info("staged orders", "count", len(b.pending), "executionDate", t1.Format("2006-01-02"))
	}
	return nil
}

// nextDayRefPrices prices pending targets against the next trading
// day's slice. When that slice is missing the run either aborts or
// falls back to the decision day's own prices, per configuration.
func (b *backtester) nextDayRefPrices(t0, t1 time.Time) (map[string]decimal.Decimal, error) {
	refPrices := b.store.RefPrices(t1, b.cfg.Execution.OrderFillMethod)
	if len(refPrices) > 0 {
		return refPrices, nil
	}
	if b.cfg.Run.OnMissingNextDay == config.NextDayAbort {
		return nil, fmt.Errorf("%w: %s", ErrMissingNextDay, t1.Format("2006-01-02"))
	}
	b.logger.Warn("next day has no data, falling back to current day prices",
		"date", t0.Format("2006-01-02"), "nextDate", t1.Format("2006-01-02"))
	return b.store.RefPrices(t0, b.cfg.Execution.OrderFillMethod), nil
}

func (b *backtester) intradayExtremes(slice []types.Bar) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	if !b.cfg.Risk.Enabled || !b.cfg.Risk.UseIntradayExtremes {
		return nil, nil
	}
	highs := make(map[string]decimal.Decimal, len(slice))
	lows := make(map[string]decimal.Decimal, len(slice))
	for _, bar := range slice {
		highs[bar.Symbol] = bar.High
		lows[bar.Symbol] = bar.Low
	}
	return highs, lows
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
