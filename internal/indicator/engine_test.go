package indicator

import (
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seriesFromCloses(t *testing.T, closes []float64) PriceSeries {
	t.Helper()
	points := make([]PricePoint, len(closes))
	for i, c := range closes {
		points[i] = PricePoint{Date: day(i), Close: c}
	}
	s, err := NewPriceSeries(points)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	return s
}

func risingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewPriceSeriesRejectsDuplicateDates(t *testing.T) {
	_, err := NewPriceSeries([]PricePoint{
		{Date: day(0), Close: 10},
		{Date: day(0), Close: 11},
	})
	if err == nil {
		t.Fatal("expected error for duplicate dates")
	}
}

func TestNewPriceSeriesRejectsOutOfOrder(t *testing.T) {
	_, err := NewPriceSeries([]PricePoint{
		{Date: day(1), Close: 10},
		{Date: day(0), Close: 11},
	})
	if err == nil {
		t.Fatal("expected error for out-of-order dates")
	}
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		window int
		want   *float64
	}{
		{"exact window", []float64{1, 2, 3, 4, 5}, 5, ptr(3.0)},
		{"trailing window", []float64{100, 1, 2, 3}, 3, ptr(2.0)},
		{"too short", []float64{1, 2}, 3, nil},
		{"empty", nil, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMA(tt.closes, tt.window)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("SMA = %v, want %v", got, tt.want)
			}
			if got != nil && !almostEqual(*got, *tt.want) {
				t.Fatalf("SMA = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestRSIAllGains(t *testing.T) {
	got := RSI(risingCloses(15, 10, 1), 14)
	if got == nil || *got != 100 {
		t.Fatalf("RSI = %v, want 100", got)
	}
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	got := RSI(closes, 14)
	if got == nil || !almostEqual(*got, 0) {
		t.Fatalf("RSI = %v, want 0", got)
	}
}

func TestRSIMixed(t *testing.T) {
	// Alternating +2/-1 over a 4-delta window: meanGain=1, meanLoss=0.5,
	// rs=2, rsi = 100 - 100/3.
	closes := []float64{10, 12, 11, 13, 12}
	got := RSI(closes, 4)
	want := 100 - 100.0/3.0
	if got == nil || !almostEqual(*got, want) {
		t.Fatalf("RSI = %v, want %v", got, want)
	}
}

func TestRSIInsufficientHistory(t *testing.T) {
	// 14 closes give only 13 deltas; a 14-window RSI must be undefined.
	if got := RSI(risingCloses(14, 10, 1), 14); got != nil {
		t.Fatalf("RSI = %v, want nil", *got)
	}
}

func TestComputeLatestRowOnly(t *testing.T) {
	e := Engine{RSIWindow: 14, SMAShortWindow: 5, SMALongWindow: 10}
	s := seriesFromCloses(t, risingCloses(20, 10, 1))

	row, ok := e.Compute("AAA", s)
	if !ok {
		t.Fatal("expected a row")
	}
	if !row.Date.Equal(day(19)) {
		t.Fatalf("row date = %s, want %s", row.Date, day(19))
	}
	if row.RSI == nil || *row.RSI != 100 {
		t.Fatalf("rsi = %v, want 100", row.RSI)
	}
	// Closes 25..29 and 20..29.
	if row.SMAShort == nil || !almostEqual(*row.SMAShort, 27) {
		t.Fatalf("sma_short = %v, want 27", row.SMAShort)
	}
	if row.SMALong == nil || !almostEqual(*row.SMALong, 24.5) {
		t.Fatalf("sma_long = %v, want 24.5", row.SMALong)
	}
}

func TestComputePartialHistory(t *testing.T) {
	// 7 sessions: sma_5 defined, sma_10 and rsi_14 undefined.
	e := Engine{RSIWindow: 14, SMAShortWindow: 5, SMALongWindow: 10}
	s := seriesFromCloses(t, risingCloses(7, 10, 1))

	row, ok := e.Compute("AAA", s)
	if !ok {
		t.Fatal("expected a row when at least one indicator is defined")
	}
	if row.SMAShort == nil {
		t.Fatal("sma_short should be defined")
	}
	if row.SMALong != nil {
		t.Fatalf("sma_long = %v, want nil", *row.SMALong)
	}
	if row.RSI != nil {
		t.Fatalf("rsi = %v, want nil", *row.RSI)
	}
}

func TestComputeSkipsEmptySeries(t *testing.T) {
	e := Engine{RSIWindow: 14, SMAShortWindow: 5, SMALongWindow: 10}
	if _, ok := e.Compute("AAA", nil); ok {
		t.Fatal("expected skip for empty series")
	}
}

func TestComputeSkipsAllUndefined(t *testing.T) {
	e := Engine{RSIWindow: 14, SMAShortWindow: 5, SMALongWindow: 10}
	s := seriesFromCloses(t, risingCloses(3, 10, 1))
	if _, ok := e.Compute("AAA", s); ok {
		t.Fatal("expected skip when every indicator is undefined")
	}
}

func TestMaxWindow(t *testing.T) {
	e := Engine{RSIWindow: 14, SMAShortWindow: 5, SMALongWindow: 10}
	if got := e.MaxWindow(); got != 14 {
		t.Fatalf("MaxWindow = %d, want 14", got)
	}
	e = Engine{RSIWindow: 2, SMAShortWindow: 5, SMALongWindow: 30}
	if got := e.MaxWindow(); got != 30 {
		t.Fatalf("MaxWindow = %d, want 30", got)
	}
}

func ptr(v float64) *float64 { return &v }
