package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"resq-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// mockStore serves fixed subscriptions and records deletions.
type mockStore struct {
	mu      sync.Mutex
	subs    map[string][]model.PushSubscription
	listErr error
	deleted chan string
}

func (m *mockStore) ListSubscriptionsForWorker(ctx context.Context, workerID string) ([]model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.subs[workerID], nil
}

func (m *mockStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	m.deleted <- endpoint
	return nil
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func testAlert(workerID string) model.AlertRecord {
	return model.AlertRecord{
		ID:           1,
		WorkerID:     workerID,
		HelmetNumber: "RQ-001",
		WorkerName:   "Asha Patil",
		AlertType:    "Fall detected",
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 1, &mockStore{}, &webpush.Options{}, zap.NewNop())

	wp.Dispatch(testAlert("w-1"))

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "w-1", job.WorkerID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchDropsWhenFull(t *testing.T) {
	wp := NewWorkerPool(1, 1, &mockStore{}, &webpush.Options{}, zap.NewNop())

	wp.Dispatch(testAlert("w-1"))
	done := make(chan struct{})
	go func() {
		wp.Dispatch(testAlert("w-2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
	assert.Len(t, wp.jobs, 1)
}

func TestAlertMessage(t *testing.T) {
	assert.Equal(t, "Asha Patil (RQ-001): Fall detected", AlertMessage(testAlert("w-1")))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	store := &mockStore{
		subs: map[string][]model.PushSubscription{
			"w-1": {{Endpoint: "https://example.com/push", P256DH: "test_p256dh", Auth: "test_auth"}},
			"w-2": {{Endpoint: "https://example.com/expired", P256DH: "p", Auth: "a"}},
		},
		deleted: make(chan string, 1),
	}
	wp := NewWorkerPool(1, 4, store, &webpush.Options{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, "Asha Patil (RQ-001): Fall detected", string(payload))
				wg.Done()
				return okResponse(http.StatusCreated), nil
			},
		}

		wp.Dispatch(testAlert("w-1"))
		wg.Wait()
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return okResponse(http.StatusGone), nil
			},
		}

		wp.Dispatch(testAlert("w-2"))

		select {
		case endpoint := <-store.deleted:
			assert.Equal(t, "https://example.com/expired", endpoint)
		case <-time.After(1 * time.Second):
			t.Fatal("expired subscription was not deleted")
		}
	})
}

func TestWorkerPool_NotifyAlertErrors(t *testing.T) {
	var sent int
	sender := &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent++
			return nil, errors.New("push service unavailable")
		},
	}

	t.Run("subscription lookup fails", func(t *testing.T) {
		wp := NewWorkerPool(1, 1, &mockStore{listErr: errors.New("db down")}, &webpush.Options{}, zap.NewNop())
		wp.sender = sender
		wp.notifyAlert(context.Background(), testAlert("w-1"))
		assert.Equal(t, 0, sent)
	})

	t.Run("send error does not delete", func(t *testing.T) {
		store := &mockStore{
			subs:    map[string][]model.PushSubscription{"w-1": {{Endpoint: "https://example.com/push"}}},
			deleted: make(chan string, 1),
		}
		wp := NewWorkerPool(1, 1, store, &webpush.Options{}, zap.NewNop())
		wp.sender = sender
		wp.notifyAlert(context.Background(), testAlert("w-1"))
		assert.Equal(t, 1, sent)
		assert.Len(t, store.deleted, 0)
	})
}
