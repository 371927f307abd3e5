package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Global error declarations.
var (
	ErrBadFillMethod    = errors.New("unknown order fill method")
	ErrBadSlippageModel = errors.New("unknown slippage model")
	ErrBadRiskAction    = errors.New("unknown risk action")
	ErrBadDataSource    = errors.New("unknown data source")
	ErrBadNextDayPolicy = errors.New("unknown missing-next-day policy")
	ErrBadDate          = errors.New("invalid date")
)

// Fill methods for market orders.
const (
	FillNextOpen  = "next_open"
	FillNextClose = "next_close"
	FillVWAPProxy = "vwap_proxy"
)

// Slippage model types.
const (
	SlippageBpsPerTurnover   = "bps_per_turnover"
	SlippageSquareRootImpact = "square_root_impact"
)

// Risk overlay actions.
const (
	RiskActionLiquidate = "LIQUIDATE"
	RiskActionReduce    = "REDUCE"
	RiskActionNone      = "NONE"
)

// Missing next-trading-day policies.
const (
	NextDayAbort    = "abort"
	NextDayFallback = "fallback"
)

// Data sources.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

const dateLayout = "2006-01-02"

type Config struct {
	Run        RunConfig        `yaml:"run"`
	Portfolio  PortfolioConfig  `yaml:"portfolio"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Risk       RiskConfig       `yaml:"risk"`
	Accounting AccountingConfig `yaml:"accounting"`
	IO         IOConfig         `yaml:"io"`
	Log        LogConfig        `yaml:"log"`
}

type RunConfig struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	Seed      int64  `yaml:"seed"`
	// ValuationPrice is the bar column used to mark positions to market.
	ValuationPrice string `yaml:"price_column_for_valuation"`
	// OnMissingNextDay controls what happens when the next trading day
	// after a decision day has no data: abort the run, or fall back to
	// the decision day's own prices for sizing.
	OnMissingNextDay string `yaml:"on_missing_next_day"`
}

type PortfolioConfig struct {
	InitialCash float64 `yaml:"initial_cash"`
	AllowShort  bool    `yaml:"allow_short"`
}

type ExecutionConfig struct {
	OrderFillMethod     string          `yaml:"order_fill_method"`
	Slippage            SlippageConfig  `yaml:"slippage_model"`
	Commission          CommissionCfg   `yaml:"commission_model"`
	AllowPartialFills   bool            `yaml:"allow_partial_fills"`
	MaxParticipationADV float64         `yaml:"max_participation_adv"`
	SkipIfHalted        bool            `yaml:"skip_if_halted"`
	RespectDelisting    bool            `yaml:"respect_delisting"`
}

type SlippageConfig struct {
	Type             string  `yaml:"type"`
	BpsPer1xTurnover float64 `yaml:"bps_per_1x_turnover"`
	K                float64 `yaml:"k"`
	DailyADVLookback int     `yaml:"daily_adv_lookback"`
}

type CommissionCfg struct {
	PerShare    float64 `yaml:"per_share"`
	MinPerOrder float64 `yaml:"min_per_order"`
}

type RiskConfig struct {
	Enabled bool `yaml:"enabled"`
	// StopLoss and TakeProfit are fractional thresholds (0.05 == 5%);
	// nil disables the corresponding rule.
	StopLoss            *float64 `yaml:"stop_loss"`
	TakeProfit          *float64 `yaml:"take_profit"`
	Action              string   `yaml:"action"`
	ReduceFraction      float64  `yaml:"reduce_fraction"`
	UseIntradayExtremes bool     `yaml:"use_intraday_extremes"`
}

type AccountingConfig struct {
	RiskFreeRate RiskFreeRateConfig `yaml:"risk_free_rate"`
}

type RiskFreeRateConfig struct {
	Mode           string  `yaml:"mode"`
	ConstantAnnual float64 `yaml:"constant_annual"`
}

type IOConfig struct {
	Source         string        `yaml:"source"`
	MarketDataPath string        `yaml:"market_data_path"`
	HaltsPath      string        `yaml:"halts_path"`
	DatabaseURL    string        `yaml:"database_url"`
	OutputDir      string        `yaml:"output_dir"`
	Artifacts      ArtifactFlags `yaml:"artifacts"`
}

type ArtifactFlags struct {
	WriteTrades    bool `yaml:"write_trades"`
	WritePositions bool `yaml:"write_positions"`
	WritePortfolio bool `yaml:"write_portfolio"`
	WriteMetrics   bool `yaml:"write_metrics"`
	WriteHTML      bool `yaml:"write_html"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a config populated with the documented defaults.
func Default() Config {
	return Config{
		Run: RunConfig{
			Seed:             42,
			ValuationPrice:   "close",
			OnMissingNextDay: NextDayAbort,
		},
		Portfolio: PortfolioConfig{
			InitialCash: 1_000_000,
		},
		Execution: ExecutionConfig{
			OrderFillMethod: FillNextClose,
			Slippage: SlippageConfig{
				Type:             SlippageBpsPerTurnover,
				DailyADVLookback: 20,
			},
			MaxParticipationADV: 1.0,
			SkipIfHalted:        true,
			RespectDelisting:    true,
		},
		Risk: RiskConfig{
			Action:              RiskActionLiquidate,
			ReduceFraction:      1.0,
			UseIntradayExtremes: true,
		},
		Accounting: AccountingConfig{
			RiskFreeRate: RiskFreeRateConfig{Mode: "constant"},
		},
		IO: IOConfig{
			Source:    SourceCSV,
			OutputDir: "./output",
			Artifacts: ArtifactFlags{
				WriteTrades:    true,
				WritePositions: true,
				WritePortfolio: true,
				WriteMetrics:   true,
				WriteHTML:      true,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a yaml config file on top of the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values. These are setup mistakes, not
// runtime conditions, so a bad value fails the run before it starts.
func (c Config) Validate() error {
	switch c.Execution.OrderFillMethod {
	case FillNextOpen, FillNextClose, FillVWAPProxy:
	default:
		return fmt.Errorf("%w: %q", ErrBadFillMethod, c.Execution.OrderFillMethod)
	}
	switch c.Execution.Slippage.Type {
	case SlippageBpsPerTurnover, SlippageSquareRootImpact:
	default:
		return fmt.Errorf("%w: %q", ErrBadSlippageModel, c.Execution.Slippage.Type)
	}
	switch c.Risk.Action {
	case RiskActionLiquidate, RiskActionReduce, RiskActionNone:
	default:
		return fmt.Errorf("%w: %q", ErrBadRiskAction, c.Risk.Action)
	}
	switch c.IO.Source {
	case SourceCSV, SourcePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrBadDataSource, c.IO.Source)
	}
	switch c.Run.OnMissingNextDay {
	case NextDayAbort, NextDayFallback:
	default:
		return fmt.Errorf("%w: %q", ErrBadNextDayPolicy, c.Run.OnMissingNextDay)
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if _, err := c.EndDate(); err != nil {
		return err
	}
	return nil
}

// InitialCash returns the starting cash as a decimal.
func (c Config) InitialCash() decimal.Decimal {
	return decimal.NewFromFloat(c.Portfolio.InitialCash)
}

// StartDate parses run.start_date; the zero time means unbounded.
func (c Config) StartDate() (time.Time, error) {
	return parseDate(c.Run.StartDate)
}

// EndDate parses run.end_date; the zero time means unbounded.
func (c Config) EndDate() (time.Time, error) {
	return parseDate(c.Run.EndDate)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return t, nil
}
