// Package conflict finds approved occupancies that collide with a candidate
// request in both space and time.
package conflict

import (
	"context"
	"fmt"
	"log"
	"time"

	"smart-street-backend/internal/geo"
	"smart-street-backend/internal/model"
	"smart-street-backend/internal/store"
)

// ApprovedSource lists APPROVED requests whose window overlaps a query window.
// Both store.Store (point-in-time preview) and store.Tx (authoritative check
// inside the decision transaction) satisfy it.
type ApprovedSource interface {
	ListApproved(ctx context.Context, q store.ApprovedQuery) ([]model.SpaceRequest, error)
}

// Detector runs the spatial and temporal overlap test.
type Detector struct {
	scopeToSpace bool
}

// NewDetector creates a Detector. With scopeToSpace set, a candidate tied to a
// declared space is only compared against approvals in that space and
// free-standing approvals.
func NewDetector(scopeToSpace bool) *Detector {
	return &Detector{scopeToSpace: scopeToSpace}
}

// WindowsOverlap reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back windows do not overlap.
func WindowsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return bStart.Before(aEnd) && bEnd.After(aStart)
}

// FindApprovedConflicts returns every APPROVED request whose bounding circle and
// time window both overlap the candidate's. excludeID, when not empty, is left
// out of the scan. The order of the result is unspecified.
func (d *Detector) FindApprovedConflicts(ctx context.Context, src ApprovedSource, candidate *model.SpaceRequest, excludeID string) ([]model.SpaceRequest, error) {
	radius, err := candidate.Radius()
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", candidate.ID, err)
	}

	approved, err := src.ListApproved(ctx, store.ApprovedQuery{
		Start:        candidate.StartTime,
		End:          candidate.EndTime,
		ExcludeID:    excludeID,
		ScopeToSpace: d.scopeToSpace,
		SpaceID:      candidate.SpaceID,
	})
	if err != nil {
		return nil, err
	}

	center := candidate.Center()
	var conflicts []model.SpaceRequest
	for _, other := range approved {
		if excludeID != "" && other.ID == excludeID {
			continue
		}
		if !WindowsOverlap(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			continue
		}

		otherRadius, err := other.Radius()
		if err != nil {
			// A stored footprint we cannot measure is treated as colliding.
			log.Printf("Warning: approved request %s has an invalid footprint: %v", other.ID, err)
			conflicts = append(conflicts, other)
			continue
		}
		if geo.CirclesOverlap(center, radius, other.Center(), otherRadius) {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts, nil
}
