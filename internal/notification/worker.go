package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"smart-street-backend/internal/model"
)

// Notification kinds sent to vendors.
const (
	KindRequestApproved = "REQUEST_APPROVED"
	KindPermitIssued    = "PERMIT_ISSUED"
	KindRequestRejected = "REQUEST_REJECTED"
)

// ErrQueueFull is returned by Notify when the job queue has no free slot.
var ErrQueueFull = errors.New("notification queue is full")

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one notification addressed to a user.
type Job struct {
	UserID  string
	Kind    string
	Payload []byte
}

// WorkerPool persists notifications to the inbox and fans them out to the
// user's push subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. A nil webpushOptions disables push
// delivery; notifications are still written to the inbox.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		now:     time.Now,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned after its context was cancelled.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.deliver(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify queues a notification for userID without blocking. The payload is
// encoded as JSON.
func (wp *WorkerPool) Notify(ctx context.Context, userID, kind string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", kind, err)
	}

	job := Job{UserID: userID, Kind: kind, Payload: body}
	select {
	case wp.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: dropping %s for user %s", ErrQueueFull, kind, userID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// deliver stores the inbox entry and pushes it to every subscription of the user.
func (wp *WorkerPool) deliver(ctx context.Context, job Job) {
	entry := model.Notification{
		UserID:    job.UserID,
		Kind:      job.Kind,
		Payload:   string(job.Payload),
		CreatedAt: wp.now().UTC(),
	}
	if err := wp.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("Error storing %s notification for user %s: %v", job.Kind, job.UserID, err)
		return
	}

	if wp.webpush == nil {
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("user_id = ?", job.UserID).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for user %s: %v", job.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	message, err := json.Marshal(pushMessage{Kind: job.Kind, Data: job.Payload})
	if err != nil {
		log.Printf("Error encoding push message for user %s: %v", job.UserID, err)
		return
	}

	log.Printf("Sending %d %s push notifications to user %s", len(subscriptions), job.Kind, job.UserID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

type pushMessage struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
