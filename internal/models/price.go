package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price holds one daily OHLCV bar per asset. The natural key (asset_id, date)
// is enforced by the reconciliation anti-join, not by a unique constraint.
type Price struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	AssetID    uint            `gorm:"column:asset_id;not null;index:idx_price_asset_date"`
	Date       time.Time       `gorm:"type:date;not null;index:idx_price_asset_date"`
	ClosePrice decimal.Decimal `gorm:"type:numeric(10,2)"`
	OpenPrice  decimal.Decimal `gorm:"type:numeric(10,2)"`
	HighPrice  decimal.Decimal `gorm:"type:numeric(10,2)"`
	LowPrice   decimal.Decimal `gorm:"type:numeric(10,2)"`
	Volume     int64           `gorm:"type:bigint"`
}

func (Price) TableName() string {
	return "price"
}

// StagingPrice mirrors the per-ticker staging CSVs. Rows live only for the
// duration of one price load transaction.
type StagingPrice struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	Date       time.Time       `gorm:"type:date"`
	ClosePrice decimal.Decimal `gorm:"type:numeric(10,2)"`
	OpenPrice  decimal.Decimal `gorm:"type:numeric(10,2)"`
	HighPrice  decimal.Decimal `gorm:"type:numeric(10,2)"`
	LowPrice   decimal.Decimal `gorm:"type:numeric(10,2)"`
	Volume     int64           `gorm:"type:bigint"`
	Ticker     string          `gorm:"type:varchar(20)"`
}

func (StagingPrice) TableName() string {
	return "staging_price"
}
