package indicator

import (
	"fmt"
	"time"
)

// PricePoint is one close-price sample of a daily series.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is a date-ascending close-price series for one asset. Gaps
// between dates are real non-trading days and are never filled.
type PriceSeries []PricePoint

// NewPriceSeries validates that dates are strictly increasing. Duplicate or
// out-of-order dates indicate a corrupted price table and are rejected
// outright rather than silently reordered.
func NewPriceSeries(points []PricePoint) (PriceSeries, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return nil, fmt.Errorf("price series not strictly date-ascending at index %d (%s >= %s)",
				i, points[i-1].Date.Format("2006-01-02"), points[i].Date.Format("2006-01-02"))
		}
	}
	return PriceSeries(points), nil
}

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// LatestDate returns the most recent session date. Zero time for an empty
// series; callers skip empty series before getting here.
func (s PriceSeries) LatestDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	return s[len(s)-1].Date
}
