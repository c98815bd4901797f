package models

// Asset is the store-owned registry of instruments. Rows are created by hand
// (or by a separate onboarding job); the ETL only ever references them.
type Asset struct {
	AssetID uint   `gorm:"column:asset_id;primaryKey;autoIncrement"`
	Ticker  string `gorm:"type:varchar(20);not null;uniqueIndex"`
	ISIN    string `gorm:"column:isin;type:varchar(12)"`
}

func (Asset) TableName() string {
	return "asset"
}
