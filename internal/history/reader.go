package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"investassist/internal/db"
	"investassist/internal/indicator"
	"investassist/internal/repository"
	"investassist/internal/retry"
)

// LookbackDays converts a required session count into a calendar-day
// window. Markets trade five days of seven, so the window is stretched
// accordingly and padded for holidays; fetching a few extra sessions is
// harmless because the indicators only read their trailing windows.
func LookbackDays(sessions int) int {
	if sessions <= 0 {
		return 0
	}
	return sessions*7/5 + 4
}

// Reader pulls per-asset close-price series from the store with a bounded
// lookback. It is strictly read-only and recovers every per-asset failure:
// a ticker that cannot be read is skipped with a reason, never fatal.
type Reader struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// LookbackDays anchors the window at each asset's own latest price
	// date, because assets trade on different market calendars.
	LookbackDays int
	Retry        retry.Policy
}

// Fetch returns the ordered close-price series per ticker, alongside the
// tickers that were skipped and why.
func (r *Reader) Fetch(ctx context.Context, tickers []string) (map[string]indicator.PriceSeries, map[string]string) {
	series := make(map[string]indicator.PriceSeries, len(tickers))
	skipped := make(map[string]string)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			skipped[ticker] = err.Error()
			continue
		}
		s, reason := r.fetchOne(ctx, ticker)
		if reason != "" {
			skipped[ticker] = reason
			continue
		}
		series[ticker] = s
	}
	return series, skipped
}

func (r *Reader) fetchOne(ctx context.Context, ticker string) (indicator.PriceSeries, string) {
	var points []repository.ClosePoint
	var empty string

	err := r.Retry.Do(ctx, r.Logger, "fetch close prices "+ticker, func() error {
		latest, err := r.Repo.LatestPriceDate(ctx, ticker)
		if err != nil {
			return fmt.Errorf("latest price date for %s: %w", ticker, err)
		}
		if latest == nil {
			// Expected for newly listed assets; not a retryable failure.
			empty = "no price history"
			return nil
		}
		anchor := db.Day(*latest)
		from := anchor.AddDate(0, 0, -r.LookbackDays)
		points, err = r.Repo.ClosePricesBetween(ctx, ticker, from, anchor)
		if err != nil {
			return fmt.Errorf("close prices for %s: %w", ticker, err)
		}
		if len(points) == 0 {
			empty = "no close prices in lookback window"
		}
		return nil
	})
	if err != nil {
		r.logInfo("skipping asset after retries exhausted",
			zap.String("ticker", ticker), zap.Error(err))
		return nil, err.Error()
	}
	if empty != "" {
		r.logInfo("skipping asset with no price rows",
			zap.String("ticker", ticker), zap.String("reason", empty))
		return nil, empty
	}

	s, err := indicator.NewPriceSeries(toPoints(points))
	if err != nil {
		r.logWarn("skipping asset with corrupt price series",
			zap.String("ticker", ticker), zap.Error(err))
		return nil, err.Error()
	}
	return s, ""
}

func toPoints(points []repository.ClosePoint) []indicator.PricePoint {
	out := make([]indicator.PricePoint, len(points))
	for i, p := range points {
		out[i] = indicator.PricePoint{
			Date:  db.Day(p.Date),
			Close: p.Close.InexactFloat64(),
		}
	}
	return out
}

func (r *Reader) logInfo(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Info(msg, fields...)
}

func (r *Reader) logWarn(msg string, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, fields...)
}
