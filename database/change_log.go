package database

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

// recordChange appends a db_changes row describing a write. It must run inside the
// transaction of the write itself so the log never disagrees with the table.
func recordChange(tx *gorm.DB, collection, recordID, action string, before, after *models.OrderRow, at time.Time) error {
	change := models.DBChange{
		Collection: collection,
		RecordID:   recordID,
		ActionType: action,
		ChangedAt:  at,
	}

	var err error
	if change.OldRecord, err = snapshot(before); err != nil {
		return err
	}
	if change.NewRecord, err = snapshot(after); err != nil {
		return err
	}
	return tx.Create(&change).Error
}

// snapshot encodes the row columns only; relations are resolved by readers.
func snapshot(row *models.OrderRow) (*string, error) {
	if row == nil {
		return nil, nil
	}
	plain := *row
	plain.Customer = nil
	plain.DeliveryAddress = nil

	encoded, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	s := string(encoded)
	return &s, nil
}
