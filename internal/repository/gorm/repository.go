package gormrepository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"investassist/internal/models"
	"investassist/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) FindAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Asset
	err := s.db.WithContext(ctx).
		Model(&models.Asset{}).
		Where("ticker = ?", strings.TrimSpace(ticker)).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Price history reads ----------------------------------------------------

func (s *Store) LatestPriceDate(ctx context.Context, ticker string) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	row := s.db.WithContext(ctx).Raw(`
		SELECT p.date
		FROM price p
		JOIN asset a ON a.asset_id = p.asset_id
		WHERE a.ticker = ?
		ORDER BY p.date DESC
		LIMIT 1`, ticker).Row()
	var latest time.Time
	if err := row.Scan(&latest); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &latest, nil
}

func (s *Store) ClosePricesBetween(ctx context.Context, ticker string, from, to time.Time) ([]repository.ClosePoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var points []repository.ClosePoint
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.date AS date, p.close_price AS close
		FROM price p
		JOIN asset a ON a.asset_id = p.asset_id
		WHERE a.ticker = ? AND p.date BETWEEN ? AND ?
		ORDER BY p.date ASC`, ticker, from, to).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}

// --- Indicator staged load --------------------------------------------------

func (s *Store) StageIndicatorsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingIndicator) error {
	if tx == nil || len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(rows, 500).Error
}

func (s *Store) CountUnresolvedIndicatorStagingTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	var n int64
	err := tx.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM staging_indicator s
		LEFT JOIN asset a ON a.ticker = s.ticker
		WHERE a.asset_id IS NULL`).Scan(&n).Error
	return n, err
}

func (s *Store) ReconcileIndicatorsTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO indicator (date, sma_short, sma_long, rsi, asset_id)
		SELECT s.date, s.sma_short, s.sma_long, s.rsi, a.asset_id
		FROM staging_indicator s
		JOIN asset a ON a.ticker = s.ticker
		WHERE NOT EXISTS (
			SELECT 1
			FROM indicator i
			WHERE i.asset_id = a.asset_id
			AND i.date = s.date)`)
	return res.RowsAffected, res.Error
}

func (s *Store) ClearIndicatorStagingTx(ctx context.Context, tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Exec(`DELETE FROM staging_indicator`).Error
}

// --- Price staged load ------------------------------------------------------

func (s *Store) StagePricesTx(ctx context.Context, tx *gorm.DB, rows []models.StagingPrice) error {
	if tx == nil || len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(rows, 500).Error
}

func (s *Store) CountUnresolvedPriceStagingTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	var n int64
	err := tx.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM staging_price s
		LEFT JOIN asset a ON a.ticker = s.ticker
		WHERE a.asset_id IS NULL`).Scan(&n).Error
	return n, err
}

func (s *Store) ReconcilePricesTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO price (date, close_price, open_price, high_price, low_price, volume, asset_id)
		SELECT s.date, s.close_price, s.open_price, s.high_price, s.low_price, s.volume, a.asset_id
		FROM staging_price s
		JOIN asset a ON a.ticker = s.ticker
		WHERE NOT EXISTS (
			SELECT 1
			FROM price p
			WHERE p.asset_id = a.asset_id
			AND p.date = s.date)`)
	return res.RowsAffected, res.Error
}

func (s *Store) ClearPriceStagingTx(ctx context.Context, tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Exec(`DELETE FROM staging_price`).Error
}

// --- Transaction staged load ------------------------------------------------

func (s *Store) StageTransactionsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingTransaction) error {
	if tx == nil || len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(rows, 500).Error
}

// ReconcileTransactionsTx dedups on the full row rather than a natural key:
// the broker export has no order ID, and two identical fills in the same
// second are rare enough to live with.
func (s *Store) ReconcileTransactionsTx(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO "transaction" (date, time, quantity, price, value, fee, asset_id)
		SELECT s.date, s.time, s.quantity, s.price, s.value, s.fee, a.asset_id
		FROM staging_transaction s
		JOIN asset a ON a.isin = s.isin
		WHERE NOT EXISTS (
			SELECT 1
			FROM "transaction" t
			WHERE t.asset_id = a.asset_id
			AND t.date = s.date
			AND t.time = s.time
			AND t.quantity = s.quantity
			AND t.price = s.price
			AND t.value = s.value
			AND t.fee = s.fee)`)
	return res.RowsAffected, res.Error
}

func (s *Store) ClearTransactionStagingTx(ctx context.Context, tx *gorm.DB) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Exec(`DELETE FROM staging_transaction`).Error
}

// --- Downstream reads -------------------------------------------------------

func (s *Store) ListLatestIndicators(ctx context.Context) ([]repository.IndicatorView, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []repository.IndicatorView
	err := s.db.WithContext(ctx).Raw(`
		SELECT a.ticker AS ticker, i.date AS date,
		       i.sma_short AS sma_short, i.sma_long AS sma_long, i.rsi AS rsi
		FROM indicator i
		JOIN asset a ON a.asset_id = i.asset_id
		WHERE i.date = (
			SELECT MAX(i2.date) FROM indicator i2 WHERE i2.asset_id = i.asset_id)
		ORDER BY a.ticker ASC`).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- Run bookkeeping --------------------------------------------------------

func (s *Store) GetRunState(ctx context.Context, scope string) (*models.EtlRunState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.EtlRunState
	err := s.db.WithContext(ctx).
		Model(&models.EtlRunState{}).
		Where("scope = ?", scope).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListRunStates(ctx context.Context) ([]models.EtlRunState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.EtlRunState
	if err := s.db.WithContext(ctx).
		Model(&models.EtlRunState{}).
		Order("scope asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveRunState(ctx context.Context, state *models.EtlRunState) error {
	if s == nil || s.db == nil || state == nil {
		return nil
	}
	if strings.TrimSpace(state.Scope) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"watermark_date",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"stats_json",
		}),
	}).Create(state).Error
}
