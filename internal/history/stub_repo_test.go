package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"investassist/internal/models"
	"investassist/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Only the price-read side carries behavior; the rest is no-ops.
type stubRepo struct {
	latest       map[string]time.Time
	points       map[string][]repository.ClosePoint
	failuresLeft map[string]int

	latestCalls int
}

var _ repository.Repository = (*stubRepo)(nil)

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) FindAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	return nil, nil
}

func (s *stubRepo) LatestPriceDate(ctx context.Context, ticker string) (*time.Time, error) {
	s.latestCalls++
	if n := s.failuresLeft[ticker]; n > 0 {
		s.failuresLeft[ticker] = n - 1
		return nil, errors.New("store timeout")
	}
	d, ok := s.latest[ticker]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *stubRepo) ClosePricesBetween(ctx context.Context, ticker string, from, to time.Time) ([]repository.ClosePoint, error) {
	var out []repository.ClosePoint
	for _, p := range s.points[ticker] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubRepo) StageIndicatorsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingIndicator) error {
	return nil
}
func (s *stubRepo) CountUnresolvedIndicatorStagingTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ReconcileIndicatorsTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ClearIndicatorStagingTx(ctx context.Context, tx *gorm.DB) error { return nil }

func (s *stubRepo) StagePricesTx(ctx context.Context, tx *gorm.DB, rows []models.StagingPrice) error {
	return nil
}
func (s *stubRepo) CountUnresolvedPriceStagingTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ReconcilePricesTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ClearPriceStagingTx(ctx context.Context, tx *gorm.DB) error { return nil }

func (s *stubRepo) StageTransactionsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingTransaction) error {
	return nil
}
func (s *stubRepo) ReconcileTransactionsTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	return 0, nil
}
func (s *stubRepo) ClearTransactionStagingTx(ctx context.Context, tx *gorm.DB) error { return nil }

func (s *stubRepo) ListLatestIndicators(ctx context.Context) ([]repository.IndicatorView, error) {
	return nil, nil
}

func (s *stubRepo) GetRunState(ctx context.Context, scope string) (*models.EtlRunState, error) {
	return nil, nil
}
func (s *stubRepo) ListRunStates(ctx context.Context) ([]models.EtlRunState, error) {
	return nil, nil
}
func (s *stubRepo) SaveRunState(ctx context.Context, state *models.EtlRunState) error { return nil }
