package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"investassist/internal/market"
	"investassist/internal/models"
	"investassist/internal/repository"
)

// PriceLoader moves staged per-ticker price CSVs into the permanent price
// table. Same shape as the indicator load: stage, anti-join reconcile on
// (asset, date), clear staging, one transaction.
type PriceLoader struct {
	Repo   repository.Repository
	Logger *zap.Logger

	StagingDir string
	Unresolved UnresolvedPolicy
}

// LoadDir parses every staging_*.csv in the staging directory and loads
// the lot as one batch. A malformed file aborts before anything touches
// the store.
func (l *PriceLoader) LoadDir(ctx context.Context) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, fmt.Errorf("price loader not configured")
	}
	rows, err := market.ReadStagingDir(l.StagingDir)
	if err != nil {
		return 0, fmt.Errorf("read staging dir: %w", err)
	}
	return l.Load(ctx, rows)
}

func (l *PriceLoader) Load(ctx context.Context, rows []models.StagingPrice) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, fmt.Errorf("price loader not configured")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := l.Repo.StagePricesTx(ctx, tx, rows); err != nil {
			return fmt.Errorf("stage prices: %w", err)
		}

		unresolved, err := l.Repo.CountUnresolvedPriceStagingTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("count unresolved tickers: %w", err)
		}
		if unresolved > 0 {
			if l.Unresolved == UnresolvedFail {
				return fmt.Errorf("%d staged price rows reference unknown tickers", unresolved)
			}
			l.logWarn("dropping staged price rows with unknown tickers",
				zap.Int64("rows", unresolved))
		}

		inserted, err = l.Repo.ReconcilePricesTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("reconcile prices: %w", err)
		}

		if err := l.Repo.ClearPriceStagingTx(ctx, tx); err != nil {
			return fmt.Errorf("clear price staging: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logInfo("price batch loaded",
		zap.Int("staged", len(rows)),
		zap.Int64("inserted", inserted))
	return inserted, nil
}

func (l *PriceLoader) logInfo(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Info(msg, fields...)
}

func (l *PriceLoader) logWarn(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Warn(msg, fields...)
}
