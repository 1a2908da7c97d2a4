package model

import (
	"time"

	"gorm.io/gorm"

	"smart-street-backend/internal/geo"
)

// RequestStatus is the lifecycle state of a SpaceRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// SpaceRequest is a vendor's ask to occupy a footprint during [StartTime, EndTime).
// A nil SpaceID marks a free-standing location not tied to a declared space.
type SpaceRequest struct {
	ID          string        `gorm:"primaryKey;size:36" json:"request_id"`
	VendorID    string        `gorm:"size:36;index;not null" json:"vendor_id"`
	SpaceID     *string       `gorm:"size:36;index" json:"space_id"`
	Lat         float64       `gorm:"not null" json:"lat"`
	Lng         float64       `gorm:"not null" json:"lng"`
	MaxWidth    float64       `gorm:"not null" json:"max_width"`
	MaxLength   float64       `gorm:"not null" json:"max_length"`
	StartTime   time.Time     `gorm:"not null;index:idx_space_requests_window,priority:2" json:"start_time"`
	EndTime     time.Time     `gorm:"not null;index:idx_space_requests_window,priority:3" json:"end_time"`
	Status      RequestStatus `gorm:"size:16;not null;default:PENDING;index:idx_space_requests_window,priority:1" json:"status"`
	ReviewedBy  *string       `gorm:"size:36" json:"reviewed_by"`
	ReviewedAt  *time.Time    `json:"reviewed_at"`
	Remarks     *string       `gorm:"type:text" json:"remarks"`
	SubmittedAt time.Time     `gorm:"not null;autoCreateTime" json:"submitted_at"`
}

// Center returns the footprint center.
func (r *SpaceRequest) Center() geo.Point {
	return geo.Point{Lat: r.Lat, Lng: r.Lng}
}

// Radius returns the bounding circle radius of the footprint in meters.
func (r *SpaceRequest) Radius() (float64, error) {
	return geo.BoundingRadius(r.MaxWidth, r.MaxLength)
}

// BeforeSave stores every timestamp in UTC. sqlite compares timestamps as
// text, so mixed offsets would break the window prefilter.
func (r *SpaceRequest) BeforeSave(tx *gorm.DB) error {
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	} else {
		r.SubmittedAt = r.SubmittedAt.UTC()
	}
	if r.ReviewedAt != nil {
		reviewedAt := r.ReviewedAt.UTC()
		r.ReviewedAt = &reviewedAt
	}
	return nil
}
