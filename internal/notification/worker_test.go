package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func expectInboxInsert(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "notifications"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()
}

func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_Notify(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, 1, db, &webpush.Options{})

	require.NoError(t, wp.Notify(context.Background(), "user-1", KindRequestRejected, map[string]string{"request_id": "req-1"}))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "user-1", job.UserID)
		assert.Equal(t, KindRequestRejected, job.Kind)
		assert.JSONEq(t, `{"request_id":"req-1"}`, string(job.Payload))
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be queued")
	}
}

func TestWorkerPool_NotifyDoesNotBlockWhenFull(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, 1, db, nil)

	require.NoError(t, wp.Notify(context.Background(), "user-1", KindPermitIssued, nil))
	err := wp.Notify(context.Background(), "user-1", KindPermitIssued, nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, 4, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("stores and pushes to every subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)

				var msg map[string]any
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, KindRequestApproved, msg["kind"])
				wg.Done()
				return pushResponse(http.StatusCreated), nil
			},
		}

		expectInboxInsert(mock)
		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "user-1", "test_p256dh", "test_auth", time.Now()))

		require.NoError(t, wp.Notify(ctx, "user-1", KindRequestApproved, map[string]string{"request_id": "req-1"}))
		wg.Wait()
		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return pushResponse(http.StatusGone), nil
			},
		}

		expectInboxInsert(mock)
		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs("user-2").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "user-2", "p", "a", time.Now()))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, wp.Notify(ctx, "user-2", KindRequestRejected, map[string]string{"request_id": "req-2"}))
		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})

	t.Run("inbox failure skips push", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("push must not be sent when the inbox write fails")
				return pushResponse(http.StatusCreated), nil
			},
		}

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "notifications"`).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		require.NoError(t, wp.Notify(ctx, "user-3", KindPermitIssued, nil))
		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	})
}

func TestWorkerPool_PushDisabled(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, 1, gormDB, nil)

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	expectInboxInsert(mock)
	require.NoError(t, wp.Notify(ctx, "user-1", KindPermitIssued, map[string]string{"permit_id": "p-1"}))
	assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)

	cancel()
	wp.Wait()
}
