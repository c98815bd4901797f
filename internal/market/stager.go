package market

import (
	"context"

	"go.uber.org/zap"

	"investassist/internal/repository"
	"investassist/internal/retry"
)

// Stager fetches daily bars per ticker and writes them to the staging
// directory, one CSV per ticker. Tickers that fail after retries, or that
// return no data, are skipped without aborting the rest of the batch.
type Stager struct {
	Client *Client
	Logger *zap.Logger
	// Repo, when set, screens tickers against the asset table before any
	// fetch: a ticker with no asset row would be dropped at reconcile
	// anyway, so the network trip is pointless.
	Repo repository.Repository

	Dir    string
	Period string
	Retry  retry.Policy
}

// Run stages every ticker it can and reports the ones it could not.
func (s *Stager) Run(ctx context.Context, tickers []string) (staged []string, skipped map[string]string) {
	skipped = make(map[string]string)

	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			skipped[ticker] = err.Error()
			continue
		}

		if s.Repo != nil {
			asset, err := s.Repo.FindAssetByTicker(ctx, ticker)
			if err != nil {
				skipped[ticker] = err.Error()
				continue
			}
			if asset == nil {
				s.logWarn("ticker has no asset row", zap.String("ticker", ticker))
				skipped[ticker] = "no asset row"
				continue
			}
		}

		var bars []Bar
		err := s.Retry.Do(ctx, s.Logger, "fetch bars "+ticker, func() error {
			var err error
			bars, err = s.Client.DailyBars(ctx, ticker, s.Period)
			return err
		})
		if err != nil {
			skipped[ticker] = err.Error()
			continue
		}
		if len(bars) == 0 {
			s.logWarn("no data returned for ticker", zap.String("ticker", ticker))
			skipped[ticker] = "no data returned"
			continue
		}

		path, err := WriteStagingCSV(s.Dir, ticker, bars)
		if err != nil {
			s.logWarn("staging write failed", zap.String("ticker", ticker), zap.Error(err))
			skipped[ticker] = err.Error()
			continue
		}
		s.logInfo("staged ticker",
			zap.String("ticker", ticker),
			zap.Int("bars", len(bars)),
			zap.String("path", path))
		staged = append(staged, ticker)
	}
	return staged, skipped
}

func (s *Stager) logInfo(msg string, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Info(msg, fields...)
}

func (s *Stager) logWarn(msg string, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, fields...)
}
