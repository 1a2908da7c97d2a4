package model

import "time"

// Space is an owner-declared vending zone. The admission core only reads it.
type Space struct {
	ID            string    `gorm:"primaryKey;size:36" json:"space_id"`
	OwnerID       string    `gorm:"size:36;index;not null" json:"owner_id"`
	Name          string    `gorm:"size:256;not null" json:"space_name"`
	Address       string    `gorm:"size:512" json:"address"`
	Lat           float64   `gorm:"not null" json:"lat"`
	Lng           float64   `gorm:"not null" json:"lng"`
	AllowedRadius float64   `gorm:"not null" json:"allowed_radius"` // meters
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
