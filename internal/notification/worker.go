package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"resq-backend/internal/model"
)

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

// SubscriptionStore is the subset of the store the pool needs.
type SubscriptionStore interface {
	ListSubscriptionsForWorker(ctx context.Context, workerID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool sends a push notification to every subscriber of a worker
// whenever an alert is recorded for that worker.
type WorkerPool struct {
	size    int
	jobs    chan model.AlertRecord
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool with a job queue of queueSize.
func NewWorkerPool(size, queueSize int, store SubscriptionStore, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.AlertRecord, queueSize),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log.Named("notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case alert := <-wp.jobs:
			wp.notifyAlert(ctx, alert)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an alert for delivery. It never blocks: when the queue is
// full the alert is dropped and logged.
func (wp *WorkerPool) Dispatch(alert model.AlertRecord) {
	select {
	case wp.jobs <- alert:
	default:
		wp.log.Warn("notification queue full, dropping alert",
			zap.Int64("alert_id", alert.ID),
			zap.String("helmet_number", alert.HelmetNumber),
		)
	}
}

// AlertMessage is the notification body for an alert.
func AlertMessage(alert model.AlertRecord) string {
	return fmt.Sprintf("%s (%s): %s", alert.WorkerName, alert.HelmetNumber, alert.AlertType)
}

func (wp *WorkerPool) notifyAlert(ctx context.Context, alert model.AlertRecord) {
	subscriptions, err := wp.store.ListSubscriptionsForWorker(ctx, alert.WorkerID)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("worker_id", alert.WorkerID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.log.Info("sending alert notifications",
		zap.Int("count", len(subscriptions)),
		zap.String("helmet_number", alert.HelmetNumber),
	)
	message := []byte(AlertMessage(alert))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

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
		wp.log.Warn("error sending notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
