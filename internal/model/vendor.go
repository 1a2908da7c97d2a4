package model

import "time"

// Vendor links a vending business to the user account that receives its notifications.
type Vendor struct {
	ID           string    `gorm:"primaryKey;size:36" json:"vendor_id"`
	UserID       string    `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	BusinessName string    `gorm:"size:256;not null" json:"business_name"`
	Category     string    `gorm:"size:128" json:"category"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
