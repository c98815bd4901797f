package models

import (
	"time"

	"gorm.io/datatypes"
)

// EtlRunState tracks the outcome of the last run per pipeline scope
// ("prices", "indicators", "transactions"). One row per scope, upserted
// after every run.
type EtlRunState struct {
	Scope         string         `gorm:"primaryKey;type:text"`
	WatermarkDate *time.Time     `gorm:"type:date"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (EtlRunState) TableName() string {
	return "etl_run_state"
}
