package notification

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-street-backend/internal/db"
	"smart-street-backend/internal/model"
)

func newInbox(t *testing.T) *Inbox {
	t.Helper()
	gormDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return NewInbox(gormDB)
}

func TestInbox_Subscriptions(t *testing.T) {
	ctx := context.Background()
	inbox := newInbox(t)

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", UserID: "user-1", P256DH: "k1", Auth: "a1"}
	require.NoError(t, inbox.SaveSubscription(ctx, sub))

	got, err := inbox.GetSubscription(ctx, "user-1", sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "k1", got.P256DH)

	// Re-registering the endpoint replaces keys and owner.
	require.NoError(t, inbox.SaveSubscription(ctx, &model.PushSubscription{
		Endpoint: sub.Endpoint, UserID: "user-2", P256DH: "k2", Auth: "a2",
	}))
	_, err = inbox.GetSubscription(ctx, "user-1", sub.Endpoint)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	got, err = inbox.GetSubscription(ctx, "user-2", sub.Endpoint)
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)

	assert.ErrorIs(t, inbox.DeleteSubscription(ctx, "user-1", sub.Endpoint), ErrSubscriptionNotFound)
	require.NoError(t, inbox.DeleteSubscription(ctx, "user-2", sub.Endpoint))
	_, err = inbox.GetSubscription(ctx, "user-2", sub.Endpoint)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestInbox_ListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	inbox := newInbox(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, kind := range []string{KindRequestApproved, KindPermitIssued} {
		require.NoError(t, inbox.db.Create(&model.Notification{
			UserID: "user-1", Kind: kind, Payload: `{}`, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, inbox.db.Create(&model.Notification{
		UserID: "user-2", Kind: KindRequestRejected, Payload: `{}`, CreatedAt: base,
	}).Error)

	rows, err := inbox.List(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, KindPermitIssued, rows[0].Kind)
	assert.False(t, rows[0].Read)

	limited, err := inbox.List(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, inbox.MarkRead(ctx, "user-1", rows[0].ID))
	assert.ErrorIs(t, inbox.MarkRead(ctx, "user-2", rows[1].ID), ErrNotificationNotFound)

	rows, err = inbox.List(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.True(t, rows[0].Read)
	assert.False(t, rows[1].Read)
}
