package model

import "time"

// Notification is a persisted inbox entry for a user.
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"notification_id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
