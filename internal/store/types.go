package store

import (
	"time"

	"smart-street-backend/internal/model"
)

// RequestFilter narrows ListRequests. A nil Status returns every request.
type RequestFilter struct {
	Status *model.RequestStatus
}

// ApprovedQuery selects APPROVED requests whose time window overlaps [Start, End).
type ApprovedQuery struct {
	Start     time.Time
	End       time.Time
	ExcludeID string

	// When ScopeToSpace is set and SpaceID is not nil, only requests in the same
	// space or free-standing requests are returned.
	ScopeToSpace bool
	SpaceID      *string
}

// RequestSummary is a request joined with its space and vendor display data.
type RequestSummary struct {
	model.SpaceRequest
	SpaceName    *string `json:"space_name"`
	Address      *string `json:"address"`
	BusinessName *string `json:"business_name"`
}

// PermitSummary is a permit denormalized with its request and space.
type PermitSummary struct {
	PermitID   string             `gorm:"column:permit_id" json:"permit_id"`
	RequestID  string             `gorm:"column:request_id" json:"request_id"`
	Credential string             `gorm:"column:qr_payload" json:"qr_payload"`
	Status     model.PermitStatus `gorm:"column:permit_status" json:"permit_status"`
	ValidFrom  time.Time          `gorm:"column:valid_from" json:"valid_from"`
	ValidTo    time.Time          `gorm:"column:valid_to" json:"valid_to"`
	IssuedAt   time.Time          `gorm:"column:issued_at" json:"issued_at"`
	VendorID   string             `gorm:"column:vendor_id" json:"vendor_id"`
	SpaceID    *string            `gorm:"column:space_id" json:"space_id"`
	Lat        float64            `gorm:"column:lat" json:"lat"`
	Lng        float64            `gorm:"column:lng" json:"lng"`
	SpaceName  *string            `gorm:"column:space_name" json:"space_name"`
	Address    *string            `gorm:"column:address" json:"address"`
}
