package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"resq-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	FindWorkerByHelmet(ctx context.Context, helmetNumber string) (*model.Worker, error)
	UpdateWorkerTelemetry(ctx context.Context, workerID string, update WorkerTelemetry) error
	InsertSensorReading(ctx context.Context, reading *model.SensorReading) error
	InsertAlert(ctx context.Context, alert *model.AlertRecord) error

	CreateWorker(ctx context.Context, worker *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	ListWorkers(ctx context.Context, ownerID string) ([]model.Worker, error)
	DeleteWorker(ctx context.Context, id string) error
	ListSensorReadings(ctx context.Context, workerID string, limit int) ([]model.SensorReading, error)
	ListAlerts(ctx context.Context, workerID string, limit int) ([]model.AlertRecord, error)
	ResolveAlert(ctx context.Context, id int64) error

	ListSubscriptionsForWorker(ctx context.Context, workerID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error

	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// FindWorkerByHelmet returns the worker registered under helmetNumber. The
// unique index on helmet_number keeps this to a single row.
func (s *gormStore) FindWorkerByHelmet(ctx context.Context, helmetNumber string) (*model.Worker, error) {
	var worker model.Worker
	err := s.db.WithContext(ctx).Where("helmet_number = ?", helmetNumber).First(&worker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up helmet %q: %w", helmetNumber, err)
	}
	return &worker, nil
}

// UpdateWorkerTelemetry applies a partial update to the worker's sensor,
// status and (optionally) location columns.
func (s *gormStore) UpdateWorkerTelemetry(ctx context.Context, workerID string, update WorkerTelemetry) error {
	err := s.db.WithContext(ctx).
		Model(&model.Worker{}).
		Where("id = ?", workerID).
		Updates(update.columns()).Error
	if err != nil {
		return fmt.Errorf("failed to update worker %s: %w", workerID, err)
	}
	return nil
}

func (s *gormStore) InsertSensorReading(ctx context.Context, reading *model.SensorReading) error {
	if err := s.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to insert sensor reading for worker %s: %w", reading.WorkerID, err)
	}
	return nil
}

func (s *gormStore) InsertAlert(ctx context.Context, alert *model.AlertRecord) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to insert alert for worker %s: %w", alert.WorkerID, err)
	}
	return nil
}

// CreateWorker registers a new helmet.
func (s *gormStore) CreateWorker(ctx context.Context, worker *model.Worker) error {
	err := s.db.WithContext(ctx).Create(worker).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateHelmet
	}
	if err != nil {
		return fmt.Errorf("failed to create worker for helmet %q: %w", worker.HelmetNumber, err)
	}
	return nil
}

func (s *gormStore) GetWorker(ctx context.Context, id string) (*model.Worker, error) {
	var worker model.Worker
	err := s.db.WithContext(ctx).First(&worker, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker %s: %w", id, err)
	}
	return &worker, nil
}

// ListWorkers returns workers newest first. An empty ownerID lists everyone.
func (s *gormStore) ListWorkers(ctx context.Context, ownerID string) ([]model.Worker, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if ownerID != "" {
		q = q.Where("user_id = ?", ownerID)
	}
	var workers []model.Worker
	if err := q.Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return workers, nil
}

// DeleteWorker removes a worker together with its history and subscription mappings.
func (s *gormStore) DeleteWorker(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("worker_id = ?", id).Delete(&model.SensorReading{}).Error; err != nil {
			return fmt.Errorf("failed to delete sensor readings for worker %s: %w", id, err)
		}
		if err := tx.Where("worker_id = ?", id).Delete(&model.AlertRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete alerts for worker %s: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_worker_mapping WHERE worker_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete subscription mappings for worker %s: %w", id, err)
		}
		res := tx.Delete(&model.Worker{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete worker %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrWorkerNotFound
		}
		return nil
	})
}

// ListSensorReadings returns the most recent readings first.
func (s *gormStore) ListSensorReadings(ctx context.Context, workerID string, limit int) ([]model.SensorReading, error) {
	var readings []model.SensorReading
	err := s.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sensor readings for worker %s: %w", workerID, err)
	}
	return readings, nil
}

// ListAlerts returns the most recent alerts first. An empty workerID lists
// alerts across all workers.
func (s *gormStore) ListAlerts(ctx context.Context, workerID string, limit int) ([]model.AlertRecord, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if workerID != "" {
		q = q.Where("worker_id = ?", workerID)
	}
	var alerts []model.AlertRecord
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *gormStore) ResolveAlert(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).
		Model(&model.AlertRecord{}).
		Where("id = ?", id).
		Update("resolved", true)
	if res.Error != nil {
		return fmt.Errorf("failed to resolve alert %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// ListSubscriptionsForWorker returns the push subscriptions mapped to a worker.
func (s *gormStore) ListSubscriptionsForWorker(ctx context.Context, workerID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_worker_mapping swm ON swm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("swm.worker_id = ?", workerID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for worker %s: %w", workerID, err)
	}
	return subscriptions, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
