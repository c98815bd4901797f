package indicator

import "time"

// Row is the single latest indicator row computed for one asset in one run.
// Nil fields mean the series was too short for that indicator to be defined.
type Row struct {
	Date     time.Time
	Ticker   string
	RSI      *float64
	SMAShort *float64
	SMALong  *float64
}

// Engine computes trailing RSI and dual-window SMA over a price series.
// It is a pure function of its inputs; windows are fixed at construction.
type Engine struct {
	RSIWindow      int
	SMAShortWindow int
	SMALongWindow  int
}

// MaxWindow is the longest window any indicator needs.
func (e Engine) MaxWindow() int {
	max := e.RSIWindow
	if e.SMAShortWindow > max {
		max = e.SMAShortWindow
	}
	if e.SMALongWindow > max {
		max = e.SMALongWindow
	}
	return max
}

// MinSessions is the session count that makes every indicator defined on
// the latest date: RSI needs MaxWindow deltas, hence MaxWindow+1 closes.
// The price history reader sizes its lookback from this.
func (e Engine) MinSessions() int {
	return e.MaxWindow() + 1
}

// Compute emits the indicator row for the latest date of the series.
// It returns ok=false when the asset should be skipped: empty series, or a
// series so short that every indicator is undefined.
func (e Engine) Compute(ticker string, series PriceSeries) (Row, bool) {
	if len(series) == 0 {
		return Row{}, false
	}

	closes := series.Closes()
	row := Row{
		Date:     series.LatestDate(),
		Ticker:   ticker,
		RSI:      RSI(closes, e.RSIWindow),
		SMAShort: SMA(closes, e.SMAShortWindow),
		SMALong:  SMA(closes, e.SMALongWindow),
	}
	if row.RSI == nil && row.SMAShort == nil && row.SMALong == nil {
		return Row{}, false
	}
	return row, true
}

// SMA returns the trailing simple moving average over the last window
// closes, or nil when the series is shorter than the window.
func SMA(closes []float64, window int) *float64 {
	if window <= 0 || len(closes) < window {
		return nil
	}
	sum := 0.0
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	v := sum / float64(window)
	return &v
}

// RSI returns the trailing relative strength index over the last window
// day-over-day deltas, using a plain rolling mean of gains and losses.
// A series needs window+1 closes to produce window deltas; anything shorter
// yields nil rather than a guessed value. A window with no losses reads as
// maximally overbought, so the zero-loss degenerate case is pinned to 100.
func RSI(closes []float64, window int) *float64 {
	if window <= 0 || len(closes) < window+1 {
		return nil
	}

	meanGain := 0.0
	meanLoss := 0.0
	for i := len(closes) - window; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			meanGain += delta
		} else {
			meanLoss += -delta
		}
	}
	meanGain /= float64(window)
	meanLoss /= float64(window)

	if meanLoss == 0 {
		v := 100.0
		return &v
	}

	rs := meanGain / meanLoss
	v := 100 - 100/(1+rs)
	return &v
}
