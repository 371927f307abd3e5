package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"backsim/internal/config"
	"backsim/types"
)

// CSVReporter accumulates one row set per simulated day and writes the
// configured CSV artifacts plus an HTML summary on Finalize.
type CSVReporter struct {
	outputDir string
	flags     config.ArtifactFlags
	runID     string

	tradeRows     [][]string
	positionRows  [][]string
	portfolioRows [][]string
	metricsRows   [][]string

	tradeCount    int
	lastSnapshot  types.PortfolioSnapshot
	lastMetrics   types.MetricsSnapshot
	firstDate     time.Time
	lastDate      time.Time
	hasDays       bool
}

func NewCSVReporter(io config.IOConfig, runID string) *CSVReporter {
	return &CSVReporter{
		outputDir: io.OutputDir,
		flags:     io.Artifacts,
		runID:     runID,
	}
}

const reportDateLayout = "2006-01-02"

func (r *CSVReporter) AddDay(date time.Time, fills []types.Fill, snapshot types.PortfolioSnapshot, view types.PortfolioView, metrics types.MetricsSnapshot) {
	day := date.Format(reportDateLayout)
	for _, f := range fills {
		r.tradeRows = append(r.tradeRows, []string{
			day,
			f.Symbol,
			string(f.Side),
			strconv.FormatInt(f.Qty, 10),
			f.RefPrice.String(),
			f.FillPrice.String(),
			f.Slippage.String(),
			f.Commission.String(),
			f.Notional().String(),
			string(f.OrderType),
			f.BasePrice.String(),
			f.OrderID,
		})
	}
	r.tradeCount += len(fills)

	symbols := make([]string, 0, len(view.Positions))
	for symbol := range view.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		pos := view.Positions[symbol]
		r.positionRows = append(r.positionRows, []string{
			day,
			symbol,
			strconv.FormatInt(pos.Quantity, 10),
			pos.AvgCost.String(),
		})
	}

	r.portfolioRows = append(r.portfolioRows, []string{
		day,
		snapshot.Cash.String(),
		snapshot.MarketValue.String(),
		snapshot.Equity.String(),
		snapshot.NAV.String(),
		snapshot.GrossExposure.String(),
		snapshot.NetExposure.String(),
	})

	r.metricsRows = append(r.metricsRows, []string{
		day,
		formatFloat(metrics.DailyReturn),
		formatFloat(metrics.CumulativeReturn),
		formatFloat(metrics.VolAnnualized),
		formatFloat(metrics.SharpeITD),
		formatFloat(metrics.Sharpe30D),
		formatFloat(metrics.MaxDrawdown),
		formatFloat(metrics.Drawdown),
		formatFloat(metrics.RFDaily),
	})

	if !r.hasDays {
		r.firstDate = date
		r.hasDays = true
	}
	r.lastDate = date
	r.lastSnapshot = snapshot
	r.lastMetrics = metrics
}

func (r *CSVReporter) Finalize() error {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	artifacts := []struct {
		enabled bool
		name    string
		header  []string
		rows    [][]string
	}{
		{r.flags.WriteTrades, "trades.csv",
			[]string{"date", "symbol", "side", "qty", "ref_price", "fill_price", "slippage", "commission", "notional", "order_type", "base_price", "order_id"},
			r.tradeRows},
		{r.flags.WritePositions, "positions.csv",
			[]string{"date", "symbol", "shares", "avg_cost"},
			r.positionRows},
		{r.flags.WritePortfolio, "portfolio.csv",
			[]string{"date", "cash", "market_value", "equity", "nav", "gross_exposure", "net_exposure"},
			r.portfolioRows},
		{r.flags.WriteMetrics, "metrics.csv",
			[]string{"date", "daily_return", "cumulative_return", "vol_annualized", "sharpe_itd", "sharpe_30d", "max_drawdown", "drawdown", "rf_daily"},
			r.metricsRows},
	}
	for _, a := range artifacts {
		if !a.enabled || len(a.rows) == 0 {
			continue
		}
		if err := r.writeCSVFile(filepath.Join(r.outputDir, a.name), a.header, a.rows); err != nil {
			return err
		}
	}

	if r.flags.WriteHTML && r.hasDays {
		if err := r.writeHTMLSummary(filepath.Join(r.outputDir, "summary.html")); err != nil {
			return err
		}
	}
	return nil
}

func (r *CSVReporter) writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return writeCSV(f, header, rows)
}

// writeCSV writes rows to any io.Writer as CSV. You can pass os.Stdout
// for debugging, or a file.
func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
