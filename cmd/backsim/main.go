package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"backsim/internal/config"
	"backsim/internal/engine"
	"backsim/internal/logging"
	"backsim/internal/marketdata"
	"backsim/internal/repository"
	"backsim/strategies/equalweight"
	"backsim/strategies/limitorder"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "path to backtest yaml config")
	strategyName := flag.String("strategy", "equalweight", "strategy to run (equalweight|limitorder)")
	maxSymbols := flag.Int("max-symbols", 50, "maximum number of symbols the strategy holds")
	progress := flag.Bool("progress", true, "show a progress bar")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backsim -config backtest.yaml [-strategy equalweight|limitorder]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	runID := uuid.NewString()
	logger := logging.NewLogger(cfg.Log.Level).With(slog.String("run_id", runID))

	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("load market data", "error", err)
		os.Exit(1)
	}

	var strat engine.Strategy
	switch *strategyName {
	case "equalweight":
		strat = equalweight.New(*maxSymbols)
	case "limitorder":
		strat = limitorder.New(*maxSymbols, 0.02)
	default:
		logger.Error("unknown strategy", "strategy", *strategyName)
		os.Exit(2)
	}

	reporter := engine.NewCSVReporter(cfg.IO, runID)
	eng, err := engine.New(cfg, store, strat, reporter, logger)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}
	if *progress {
		eng.EnableProgress()
	}

	if err := eng.Run(); err != nil {
		logger.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func buildStore(cfg config.Config, logger *slog.Logger) (*marketdata.Store, error) {
	start, err := cfg.StartDate()
	if err != nil {
		return nil, err
	}
	end, err := cfg.EndDate()
	if err != nil {
		return nil, err
	}

	switch cfg.IO.Source {
	case config.SourcePostgres:
		db, err := repository.NewDatabase(cfg.IO.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return engine.LoadStore(&db, start, end)
	default:
		bars, err := marketdata.LoadBarsCSV(cfg.IO.MarketDataPath)
		if err != nil {
			return nil, err
		}
		var halts []marketdata.Halt
		if cfg.IO.HaltsPath != "" {
			halts, err = marketdata.LoadHaltsCSV(cfg.IO.HaltsPath)
			if err != nil {
				return nil, err
			}
		}
		logger.Info("loaded market data", "bars", len(bars), "halts", len(halts))
		return marketdata.NewStore(bars, halts), nil
	}
}
