package models

import "time"

// Indicator is the permanent, append-only indicator history. One row per
// asset per batch run, representing the latest computable session at the
// time the run happened. Nil fields mean the lookback window was too short
// for that indicator to be defined.
type Indicator struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	Date     time.Time `gorm:"type:date;not null;index:idx_indicator_asset_date"`
	SMAShort *float64  `gorm:"column:sma_short;type:numeric(10,2)"`
	SMALong  *float64  `gorm:"column:sma_long;type:numeric(10,2)"`
	RSI      *float64  `gorm:"column:rsi;type:numeric(5,2)"`
	AssetID  uint      `gorm:"column:asset_id;not null;index:idx_indicator_asset_date"`
}

func (Indicator) TableName() string {
	return "indicator"
}

// StagingIndicator is the run-scoped holding area for freshly computed rows.
// Tickers are resolved to asset IDs only during reconciliation.
type StagingIndicator struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement"`
	Date     time.Time `gorm:"type:date"`
	SMAShort *float64  `gorm:"column:sma_short;type:numeric(10,2)"`
	SMALong  *float64  `gorm:"column:sma_long;type:numeric(10,2)"`
	RSI      *float64  `gorm:"column:rsi;type:numeric(5,2)"`
	Ticker   string    `gorm:"type:varchar(20)"`
}

func (StagingIndicator) TableName() string {
	return "staging_indicator"
}
