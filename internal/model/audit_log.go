package model

import "time"

// AuditLog records an operator action.
type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"log_id"`
	ActorID    string    `gorm:"size:36;index;not null" json:"actor_id"`
	Action     string    `gorm:"size:64;not null" json:"action"`
	EntityType string    `gorm:"size:64;not null" json:"entity_type"`
	EntityID   string    `gorm:"size:36;index" json:"entity_id"`
	Origin     string    `gorm:"size:64" json:"origin"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
}
