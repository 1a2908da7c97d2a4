// Package audit persists the trail of operator decisions.
package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smart-street-backend/internal/model"
)

// Action names written to the audit trail.
const (
	ActionApproveRequest = "APPROVE_REQUEST"
	ActionRejectRequest  = "REJECT_REQUEST"
)

// EntitySpaceRequests is the entity type for decisions on space requests.
const EntitySpaceRequests = "space_requests"

// Recorder writes audit entries through GORM.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// RecordAction stores one audit entry. origin is the network address of the
// caller and may be empty.
func (r *Recorder) RecordAction(ctx context.Context, actorID, action, entityType, entityID, origin string) error {
	entry := model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Origin:     origin,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record %s on %s %s: %w", action, entityType, entityID, err)
	}
	return nil
}

// ListForEntity returns the audit entries of one entity, oldest first.
func (r *Recorder) ListForEntity(ctx context.Context, entityType, entityID string) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries for %s %s: %w", entityType, entityID, err)
	}
	return entries, nil
}

// ListRecent returns the newest audit entries, at most limit of them.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]model.AuditLog, error) {
	var entries []model.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
