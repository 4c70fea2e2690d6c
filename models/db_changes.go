package models

import (
	"time"
)

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// DBChange is one row of the change log written in the same transaction as the write it describes.
type DBChange struct {
	ID         uint      `gorm:"primaryKey"`
	Collection string    `gorm:"column:table_name;type:varchar(50);not null;index:idx_table_action"`
	RecordID   string    `gorm:"type:varchar(64);not null"`
	ActionType string    `gorm:"type:varchar(10);not null;index:idx_table_action"`
	OldRecord  *string   `gorm:"type:text"`
	NewRecord  *string   `gorm:"type:text"`
	ChangedAt  time.Time `gorm:"not null;index"`
	Processed  bool      `gorm:"default:false;index:idx_processed"`
}

func (DBChange) TableName() string {
	return "db_changes"
}
