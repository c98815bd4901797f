package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"investassist/internal/db"
	"investassist/internal/indicator"
	"investassist/internal/models"
	"investassist/internal/repository"
)

// UnresolvedPolicy decides what happens to staged rows whose ticker has no
// matching asset row.
type UnresolvedPolicy string

const (
	// UnresolvedSkip drops unresolved rows with a warning; the join simply
	// produces nothing for them.
	UnresolvedSkip UnresolvedPolicy = "skip"
	// UnresolvedFail rolls the whole load back when any row is unresolved.
	UnresolvedFail UnresolvedPolicy = "fail"
)

// IndicatorLoader reconciles a batch of computed indicator rows into the
// permanent indicator table through the staging table, inside a single
// transaction: stage, reconcile via anti-join, clear staging, commit.
// Any failure rolls everything back; re-running the same batch is safe
// because the anti-join checks the permanent table, not staging.
type IndicatorLoader struct {
	Repo   repository.Repository
	Logger *zap.Logger

	Unresolved UnresolvedPolicy
}

// Load stages and reconciles the batch. It reports how many rows actually
// reached the permanent table; rows whose (asset, date) pair already exists
// count as zero, which is what makes retried runs idempotent.
func (l *IndicatorLoader) Load(ctx context.Context, rows []indicator.Row) (int64, error) {
	if l == nil || l.Repo == nil {
		return 0, fmt.Errorf("indicator loader not configured")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	staging := make([]models.StagingIndicator, len(rows))
	for i, row := range rows {
		staging[i] = models.StagingIndicator{
			Date:     db.Day(row.Date),
			SMAShort: row.SMAShort,
			SMALong:  row.SMALong,
			RSI:      row.RSI,
			Ticker:   row.Ticker,
		}
	}

	var inserted int64
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := l.Repo.StageIndicatorsTx(ctx, tx, staging); err != nil {
			return fmt.Errorf("stage indicators: %w", err)
		}

		unresolved, err := l.Repo.CountUnresolvedIndicatorStagingTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("count unresolved tickers: %w", err)
		}
		if unresolved > 0 {
			if l.Unresolved == UnresolvedFail {
				return fmt.Errorf("%d staged rows reference unknown tickers", unresolved)
			}
			l.logWarn("dropping staged rows with unknown tickers",
				zap.Int64("rows", unresolved))
		}

		inserted, err = l.Repo.ReconcileIndicatorsTx(ctx, tx)
		if err != nil {
			return fmt.Errorf("reconcile indicators: %w", err)
		}

		if err := l.Repo.ClearIndicatorStagingTx(ctx, tx); err != nil {
			return fmt.Errorf("clear indicator staging: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logInfo("indicator batch loaded",
		zap.Int("staged", len(staging)),
		zap.Int64("inserted", inserted))
	return inserted, nil
}

func (l *IndicatorLoader) logInfo(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Info(msg, fields...)
}

func (l *IndicatorLoader) logWarn(msg string, fields ...zap.Field) {
	if l == nil || l.Logger == nil {
		return
	}
	l.Logger.Warn(msg, fields...)
}
