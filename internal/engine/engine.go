package engine

import (
	"context"
	"log/slog"
	"time"

	"backsim/internal/config"
	"backsim/internal/marketdata"
)

// Engine wires a market data store, a strategy and a reporter into one
// backtest run. One Engine owns one portfolio; runs never share state.
type Engine struct {
	cfg        config.Config
	backtester *backtester
	logger     *slog.Logger
}

func New(cfg config.Config, store *marketdata.Store, strat Strategy, reporter Reporter, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		backtester: newBacktester(cfg, store, strat, reporter, logger),
		logger:     logger,
	}, nil
}

// EnableProgress turns on the terminal progress bar.
func (e *Engine) EnableProgress() {
	e.backtester.progress = true
}

func (e *Engine) Run() error {
	startTime := time.Now()
	e.logger.Info("starting backtest",
		"startDate", e.cfg.Run.StartDate, "endDate", e.cfg.Run.EndDate)
	if err := e.backtester.run(); err != nil {
		return err
	}
	e.logger.Info("backtest finished", "elapsed", time.Since(startTime).String())
	return nil
}

// LoadStore pulls bars and halts from a data store and builds the
// in-memory market data store for the run.
func LoadStore(db dataStore, start, end time.Time) (*marketdata.Store, error) {
	ctx := context.Background()
	bars, err := db.GetBars(start, end, ctx)
	if err != nil {
		return nil, err
	}
	halts, err := db.GetHalts(start, end, ctx)
	if err != nil {
		return nil, err
	}
	return marketdata.NewStore(bars, halts), nil
}
