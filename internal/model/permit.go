package model

import (
	"time"

	"gorm.io/gorm"
)

// PermitStatus is the lifecycle state of a Permit.
type PermitStatus string

const (
	PermitValid   PermitStatus = "VALID"
	PermitExpired PermitStatus = "EXPIRED"
	PermitRevoked PermitStatus = "REVOKED"
)

// Permit is the proof of an approved SpaceRequest. The unique index on RequestID
// guarantees a request yields at most one permit.
type Permit struct {
	ID         string       `gorm:"primaryKey;size:36" json:"permit_id"`
	RequestID  string       `gorm:"size:36;uniqueIndex;not null" json:"request_id"`
	Credential string       `gorm:"column:qr_payload;type:text;not null" json:"qr_payload"`
	ValidFrom  time.Time    `gorm:"not null" json:"valid_from"`
	ValidTo    time.Time    `gorm:"not null;index" json:"valid_to"`
	Status     PermitStatus `gorm:"size:16;not null;default:VALID;index" json:"status"`
	IssuedAt   time.Time    `gorm:"not null" json:"issued_at"`
}

// BeforeSave stores every timestamp in UTC.
func (p *Permit) BeforeSave(tx *gorm.DB) error {
	p.ValidFrom = p.ValidFrom.UTC()
	p.ValidTo = p.ValidTo.UTC()
	p.IssuedAt = p.IssuedAt.UTC()
	return nil
}
