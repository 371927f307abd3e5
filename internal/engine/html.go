package engine

import (
	"fmt"
	"html/template"
	"os"
)

// summaryTemplate renders the end-of-run statistics table.
var summaryTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Backtest Summary</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; margin: 0; padding: 0; }
    .container { padding: 12px 16px; }
    h1 { font-size: 18px; margin: 8px 0 8px 0; }
    p { color: #555; margin: 4px 0 12px 0; }
    table.stats { border-collapse: collapse; margin: 8px 0 12px 0; }
    table.stats td, table.stats th { border: 1px solid #ddd; padding: 6px 10px; }
    table.stats th { background: #f7f7f7; text-align: left; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Backtest Summary</h1>
    <p>Run {{.RunID}} &middot; {{.StartDate}} to {{.EndDate}}</p>
    <table class="stats">
      <tr><th>Final Equity</th><td>{{.FinalEquity}}</td></tr>
      <tr><th>Final NAV</th><td>{{.FinalNAV}}</td></tr>
      <tr><th>Cumulative Return</th><td>{{.CumulativeReturn}}</td></tr>
      <tr><th>Annualized Volatility</th><td>{{.VolAnnualized}}</td></tr>
      <tr><th>Sharpe (ITD)</th><td>{{.SharpeITD}}</td></tr>
      <tr><th>Max Drawdown</th><td>{{.MaxDrawdown}}</td></tr>
      <tr><th>Trades</th><td>{{.Trades}}</td></tr>
    </table>
  </div>
</body>
</html>
`))

type summaryData struct {
	RunID            string
	StartDate        string
	EndDate          string
	FinalEquity      string
	FinalNAV         string
	CumulativeReturn string
	VolAnnualized    string
	SharpeITD        string
	MaxDrawdown      string
	Trades           int
}

func (r *CSVReporter) writeHTMLSummary(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary file: %w", err)
	}
	defer f.Close()

	data := summaryData{
		RunID:            r.runID,
		StartDate:        r.firstDate.Format(reportDateLayout),
		EndDate:          r.lastDate.Format(reportDateLayout),
		FinalEquity:      r.lastSnapshot.Equity.StringFixed(2),
		FinalNAV:         r.lastSnapshot.NAV.StringFixed(4),
		CumulativeReturn: fmt.Sprintf("%.2f%%", r.lastMetrics.CumulativeReturn*100),
		VolAnnualized:    fmt.Sprintf("%.2f%%", r.lastMetrics.VolAnnualized*100),
		SharpeITD:        fmt.Sprintf("%.2f", r.lastMetrics.SharpeITD),
		MaxDrawdown:      fmt.Sprintf("%.2f%%", r.lastMetrics.MaxDrawdown*100),
		Trades:           r.tradeCount,
	}
	if err := summaryTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
