package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-street-backend/internal/model"
)

var (
	// ErrSubscriptionNotFound is returned when an endpoint is not registered for the user.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrNotificationNotFound is returned when a notification id does not belong to the user.
	ErrNotificationNotFound = errors.New("notification not found")
)

// Inbox reads persisted notifications and manages push subscriptions.
type Inbox struct {
	db *gorm.DB
}

// NewInbox creates an Inbox.
func NewInbox(db *gorm.DB) *Inbox {
	return &Inbox{db: db}
}

// List returns the notifications of userID, newest first. limit <= 0 means no limit.
func (b *Inbox) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	q := b.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []model.Notification
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead flags one notification of userID as read.
func (b *Inbox) MarkRead(ctx context.Context, userID string, id int64) error {
	res := b.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// SaveSubscription creates or replaces the push subscription for an endpoint.
// An endpoint re-registered by another user moves to that user.
func (b *Inbox) SaveSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// GetSubscription returns the subscription of userID for endpoint.
func (b *Inbox) GetSubscription(ctx context.Context, userID, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := b.db.WithContext(ctx).Where("endpoint = ? AND user_id = ?", endpoint, userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// DeleteSubscription removes the subscription of userID for endpoint.
func (b *Inbox) DeleteSubscription(ctx context.Context, userID, endpoint string) error {
	res := b.db.WithContext(ctx).Where("endpoint = ? AND user_id = ?", endpoint, userID).Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
