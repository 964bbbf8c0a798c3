package models

import (
	"time"
)

// User is an account that can author posts and comments. Credentials are
// managed elsewhere; only the display fields are stored here.
type User struct {
	ID     string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Name   string    `gorm:"not null" json:"name"`
	Email  string    `gorm:"uniqueIndex;not null" json:"email"`
	Avatar string    `json:"avatar"`
	Date   time.Time `json:"date"`
}
