package models

import (
	"fmt"
	"strings"
	"time"
)

type Address struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerID   uint      `gorm:"index;not null" json:"customer_id"`
	Street       string    `gorm:"type:varchar(255);not null" json:"street"`
	Number       string    `gorm:"type:varchar(20)" json:"number"`
	Neighborhood string    `gorm:"type:varchar(100)" json:"neighborhood"`
	City         string    `gorm:"type:varchar(100)" json:"city"`
	Complement   string    `gorm:"type:varchar(255)" json:"complement"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// Label renders "Street, Number - Neighborhood, City (Complement)", skipping empty parts.
func (a Address) Label() string {
	label := strings.TrimSpace(a.Street)
	if a.Number != "" {
		label = fmt.Sprintf("%s, %s", label, a.Number)
	}
	if a.Neighborhood != "" {
		label = fmt.Sprintf("%s - %s", label, a.Neighborhood)
	}
	if a.City != "" {
		label = fmt.Sprintf("%s, %s", label, a.City)
	}
	if a.Complement != "" {
		label = fmt.Sprintf("%s (%s)", label, a.Complement)
	}
	if label == "" {
		return "não informado"
	}
	return label
}
