package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"investassist/internal/models"
)

// Repository is the store boundary for the ETL. The read side is issued
// outside any write transaction; every *Tx method runs against the single
// transaction owned by a staged-load pipeline.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	FindAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error)

	// Price history reads.
	LatestPriceDate(ctx context.Context, ticker string) (*time.Time, error)
	ClosePricesBetween(ctx context.Context, ticker string, from, to time.Time) ([]ClosePoint, error)

	// Indicator staged load.
	StageIndicatorsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingIndicator) error
	CountUnresolvedIndicatorStagingTx(ctx context.Context, tx *gorm.DB) (int64, error)
	ReconcileIndicatorsTx(ctx context.Context, tx *gorm.DB) (int64, error)
	ClearIndicatorStagingTx(ctx context.Context, tx *gorm.DB) error

	// Price staged load.
	StagePricesTx(ctx context.Context, tx *gorm.DB, rows []models.StagingPrice) error
	CountUnresolvedPriceStagingTx(ctx context.Context, tx *gorm.DB) (int64, error)
	ReconcilePricesTx(ctx context.Context, tx *gorm.DB) (int64, error)
	ClearPriceStagingTx(ctx context.Context, tx *gorm.DB) error

	// Transaction staged load.
	StageTransactionsTx(ctx context.Context, tx *gorm.DB, rows []models.StagingTransaction) error
	ReconcileTransactionsTx(ctx context.Context, tx *gorm.DB) (int64, error)
	ClearTransactionStagingTx(ctx context.Context, tx *gorm.DB) error

	// Downstream reads.
	ListLatestIndicators(ctx context.Context) ([]IndicatorView, error)

	// Run bookkeeping.
	GetRunState(ctx context.Context, scope string) (*models.EtlRunState, error)
	ListRunStates(ctx context.Context) ([]models.EtlRunState, error)
	SaveRunState(ctx context.Context, state *models.EtlRunState) error
}

// ClosePoint is one (date, close) sample of a price series.
type ClosePoint struct {
	Date  time.Time
	Close decimal.Decimal
}

// IndicatorView is the latest indicator row per asset, joined back to its
// ticker for downstream consumers.
type IndicatorView struct {
	Ticker   string
	Date     time.Time
	SMAShort *float64
	SMALong  *float64
	RSI      *float64
}
