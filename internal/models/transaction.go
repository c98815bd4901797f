package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one executed broker order, ingested from the broker's
// CSV export by the companion transactions loader.
type Transaction struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement"`
	Date     time.Time       `gorm:"type:date;not null"`
	Time     string          `gorm:"type:time without time zone;not null"`
	Quantity int             `gorm:"not null"`
	Price    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Value    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Fee      decimal.Decimal `gorm:"type:numeric(6,2)"`
	AssetID  uint            `gorm:"column:asset_id;not null;index"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// StagingTransaction keys on ISIN because that is what the broker export
// carries; the asset join happens at reconcile time.
type StagingTransaction struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement"`
	Date     time.Time       `gorm:"type:date;not null"`
	Time     string          `gorm:"type:time without time zone;not null"`
	ISIN     string          `gorm:"column:isin;type:varchar(12)"`
	Quantity int             `gorm:"not null"`
	Price    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Value    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Fee      decimal.Decimal `gorm:"type:numeric(6,2)"`
}

func (StagingTransaction) TableName() string {
	return "staging_transaction"
}
