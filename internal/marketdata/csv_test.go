package marketdata

import (
	"errors"
	"strings"
	"testing"
)

func TestReadBars(t *testing.T) {
	input := strings.Join([]string{
		"date,symbol,open,high,low,close,adjusted_close,volume,dividend,delisting_date",
		"2023-01-02,AAPL,99,102,98,100,100,1000,,",
		"2023-01-02,MSFT,199,203,197,200,199.5,2000,0.25,2023-06-30",
	}, "\n")

	bars, err := readBars(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}

	aapl := bars[0]
	if aapl.Symbol != "AAPL" || !aapl.Date.Equal(day(2)) {
		t.Errorf("first bar = %+v", aapl)
	}
	if !aapl.Close.Equal(dec("100")) || !aapl.Volume.Equal(dec("1000")) {
		t.Errorf("first bar prices = %+v", aapl)
	}
	if !aapl.Dividend.IsZero() || aapl.DelistingDate != nil {
		t.Errorf("empty optional fields parsed as %+v", aapl)
	}

	msft := bars[1]
	if !msft.Dividend.Equal(dec("0.25")) {
		t.Errorf("dividend = %s, want 0.25", msft.Dividend)
	}
	if msft.DelistingDate == nil || msft.DelistingDate.Format("2006-01-02") != "2023-06-30" {
		t.Errorf("delisting date = %v, want 2023-06-30", msft.DelistingDate)
	}
	if !msft.AdjustedClose.Equal(dec("199.5")) {
		t.Errorf("adjusted close = %s, want 199.5", msft.AdjustedClose)
	}
}

func TestReadBarsWithoutOptionalColumns(t *testing.T) {
	input := strings.Join([]string{
		"date,symbol,open,high,low,close,adjusted_close,volume",
		"2023-01-02,AAPL,99,102,98,100,100,1000",
	}, "\n")

	bars, err := readBars(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 1 || !bars[0].Dividend.IsZero() || bars[0].DelistingDate != nil {
		t.Fatalf("bars = %+v", bars)
	}
}

func TestReadBarsErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "empty file",
			input:   "",
			wantErr: ErrEmptyFile,
		},
		{
			name:    "missing required column",
			input:   "date,symbol,open,high,low,close,volume\n2023-01-02,AAPL,99,102,98,100,1000",
			wantErr: ErrMissingColumn,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readBars(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("readBars() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	badValues := []string{
		"date,symbol,open,high,low,close,adjusted_close,volume\nnot-a-date,AAPL,99,102,98,100,100,1000",
		"date,symbol,open,high,low,close,adjusted_close,volume\n2023-01-02,AAPL,abc,102,98,100,100,1000",
	}
	for _, input := range badValues {
		if _, err := readBars(strings.NewReader(input)); err == nil {
			t.Errorf("readBars(%q) error = nil, want parse error", input)
		}
	}
}

func TestReadHalts(t *testing.T) {
	input := strings.Join([]string{
		"date,symbol,is_halted",
		"2023-01-04,AAPL,true",
		"2023-01-05,MSFT,false",
	}, "\n")

	halts, err := readHalts(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(halts) != 2 {
		t.Fatalf("got %d halts, want 2", len(halts))
	}
	if halts[0].Symbol != "AAPL" || !halts[0].IsHalted || !halts[0].Date.Equal(day(4)) {
		t.Errorf("first halt = %+v", halts[0])
	}
	if halts[1].IsHalted {
		t.Errorf("second halt = %+v, want not halted", halts[1])
	}

	if halts, err := readHalts(strings.NewReader("")); err != nil || halts != nil {
		t.Errorf("empty halts file = %v, %v; want nil, nil", halts, err)
	}

	if _, err := readHalts(strings.NewReader("date,symbol\n2023-01-04,AAPL")); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("missing is_halted column error = %v, want %v", err, ErrMissingColumn)
	}
}
