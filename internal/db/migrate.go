package db

import (
	"investassist/internal/models"
)

// AutoMigrate sets up permanent and staging tables alike. Schema setup is
// deliberately separated from the load path: pipelines can assume every
// table exists, empty or not, and a rolled-back run never undoes DDL.
func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Asset{},
		&models.Price{},
		&models.Indicator{},
		&models.Transaction{},
		&models.StagingPrice{},
		&models.StagingIndicator{},
		&models.StagingTransaction{},
		&models.EtlRunState{},
	)
}
