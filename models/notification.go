package models

import (
	"time"
)

const (
	NotificationSuccess = "success"
	NotificationError   = "error"
	NotificationInfo    = "info"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Level     string    `gorm:"type:varchar(10);not null;default:'info'" json:"level"`
	Title     *string   `gorm:"type:varchar(100)" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	OrderID   *string   `gorm:"type:varchar(36);index" json:"order_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
